package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convsearch/convdex/internal/errors"
)

func descriptorFixture(name string) Descriptor {
	return Descriptor{
		Name:      name,
		Family:    FamilyPassage,
		RawPath:   "/data/" + name + "/collection",
		IndexPath: "/data/" + name + "/index",
		Schema: map[string]FieldType{
			"id":       FieldTypeID,
			"contents": FieldTypeText,
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(descriptorFixture("ikat")))

	d, err := r.Get("ikat")
	require.NoError(t, err)
	assert.Equal(t, "ikat", d.Name)
	assert.Equal(t, FamilyPassage, d.Family)
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(descriptorFixture("ikat")))

	err := r.Register(descriptorFixture("ikat"))
	require.Error(t, err)
	assert.True(t, errors.IsDuplicateDataset(err))
	assert.Equal(t, 1, r.Len())
}

func TestGetUnknown(t *testing.T) {
	r := New()
	_, err := r.Get("nope")
	require.Error(t, err)
	assert.True(t, errors.IsUnknownDataset(err))
}

func TestDeregister(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(descriptorFixture("ikat")))
	require.NoError(t, r.Deregister("ikat"))

	_, err := r.Get("ikat")
	assert.True(t, errors.IsUnknownDataset(err))
	assert.True(t, errors.IsUnknownDataset(r.Deregister("ikat")))
	assert.Empty(t, r.List())
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	r := New()
	names := []string{"zeta", "alpha", "mid"}
	for _, n := range names {
		require.NoError(t, r.Register(descriptorFixture(n)))
	}

	list := r.List()
	require.Len(t, list, 3)
	for i, n := range names {
		assert.Equal(t, n, list[i].Name)
	}

	// Snapshot is detached: deregistering does not affect an existing listing.
	require.NoError(t, r.Deregister("alpha"))
	assert.Len(t, list, 3)
	assert.Len(t, r.List(), 2)
}

func TestConcurrentRegister(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(descriptorFixture(fmt.Sprintf("ds-%d", i)))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, r.Len())
}
