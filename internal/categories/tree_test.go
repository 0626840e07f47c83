package categories

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/discourse-import/internal/discourse"
)

type fakeLister struct {
	byParent map[int][]discourse.Category
	calls    []int
	failOn   int
}

func (f *fakeLister) Categories(_ context.Context, parentID int) ([]discourse.Category, error) {
	f.calls = append(f.calls, parentID)
	if f.failOn != 0 && parentID == f.failOn {
		return nil, errors.New("boom")
	}
	return f.byParent[parentID], nil
}

func TestBuild_FlattensTwoLevels(t *testing.T) {
	lister := &fakeLister{byParent: map[int][]discourse.Category{
		0: {{ID: 1, Name: "Dev", SubcategoryIDs: []int{2}}},
		1: {{ID: 2, Name: "Tools", ParentID: 1}},
	}}

	tree, err := Build(t.Context(), lister)
	require.NoError(t, err)
	require.Equal(t, Tree{1: "Dev", 2: "Dev/Tools"}, tree)
	require.Equal(t, []int{0, 1}, lister.calls)
}

func TestBuild_SkipsChildlessCategories(t *testing.T) {
	lister := &fakeLister{byParent: map[int][]discourse.Category{
		0: {{ID: 1, Name: "Meta"}, {ID: 3, Name: "Lounge", SubcategoryIDs: []int{}}},
	}}

	tree, err := Build(t.Context(), lister)
	require.NoError(t, err)
	require.Equal(t, Tree{1: "Meta", 3: "Lounge"}, tree)
	require.Equal(t, []int{0}, lister.calls)
}

func TestBuild_PropagatesFailure(t *testing.T) {
	lister := &fakeLister{
		byParent: map[int][]discourse.Category{0: {{ID: 1, Name: "Dev", SubcategoryIDs: []int{2}}}},
		failOn:   1,
	}
	_, err := Build(t.Context(), lister)
	require.Error(t, err)
}

func TestTree_Segments(t *testing.T) {
	tree := Tree{1: "Dev", 2: "Dev/Tools"}
	require.Equal(t, []string{"Dev", "Tools"}, tree.Segments(2))
	require.Equal(t, []string{"Dev"}, tree.Segments(1))
	require.Nil(t, tree.Segments(42))
	require.Equal(t, []int{1, 2}, tree.IDs())
}
