package gestalt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deferredStaticSelector defers with an optional group key and order.
type deferredStaticSelector struct {
	names []string
	key   string
	order int
}

func (s *deferredStaticSelector) SelectImports(*TypeMetadata) []string { return s.names }

func (s *deferredStaticSelector) GroupKey() string { return s.key }

func (s *deferredStaticSelector) Order() int { return s.order }

// reversingGroup collects all selections of its group and expands them in
// reverse.
type reversingGroup struct {
	entries []GroupEntry
}

func (g *reversingGroup) Process(importing *TypeMetadata, selector ImportSelector) {
	for _, name := range selector.SelectImports(importing) {
		g.entries = append([]GroupEntry{{Metadata: importing, ClassName: name}}, g.entries...)
	}
}

func (g *reversingGroup) Entries() []GroupEntry { return g.entries }

type groupSupplyingSelector struct {
	deferredStaticSelector
}

func (s *groupSupplyingSelector) NewGroup() Group { return &reversingGroup{} }

func registerDeferredFixture(t *testing.T, accessor *StaticMetadataAccessor, selectorClass string, selector DeferredImportSelector, targets ...string) {
	t.Helper()
	md := newMD(selectorClass)
	md.New = func() any { return selector }
	accessor.Register(md)
	for _, target := range targets {
		accessor.Register(newMD(target, componentAnn("")))
	}
}

func TestDeferredSelectorsResolveAfterMainPass(t *testing.T) {
	accessor := NewStaticMetadataAccessor()
	registerDeferredFixture(t, accessor, "app.Deferred",
		&deferredStaticSelector{names: []string{"app.Late"}}, "app.Late")
	accessor.Register(newMD("app.Eager", componentAnn("")))
	accessor.Register(newMD("app.A", componentAnn(""), importAnn("app.Deferred", "app.Eager")))

	r, _, _ := newResolverFixture(accessor)
	graph, err := r.Resolve(NewComponentSource(mustRead(t, accessor, "app.A"), "a"))
	require.NoError(t, err)

	var order []string
	for _, src := range graph.Sources() {
		order = append(order, src.ClassName())
	}
	// Deferred output lands after everything the main pass resolved.
	assert.Equal(t, []string{"app.Eager", "app.A", "app.Late"}, order)
}

func TestDeferredSelectorsOrderedAcrossGroups(t *testing.T) {
	accessor := NewStaticMetadataAccessor()
	registerDeferredFixture(t, accessor, "app.SecondSel",
		&deferredStaticSelector{names: []string{"app.Second"}, order: 20}, "app.Second")
	registerDeferredFixture(t, accessor, "app.FirstSel",
		&deferredStaticSelector{names: []string{"app.First"}, order: 10}, "app.First")
	accessor.Register(newMD("app.A", componentAnn(""), importAnn("app.SecondSel", "app.FirstSel")))

	r, _, _ := newResolverFixture(accessor)
	graph, err := r.Resolve(NewComponentSource(mustRead(t, accessor, "app.A"), "a"))
	require.NoError(t, err)

	var order []string
	for _, src := range graph.Sources() {
		if src.IsImported() {
			order = append(order, src.ClassName())
		}
	}
	assert.Equal(t, []string{"app.First", "app.Second"}, order)
}

func TestDeferredGroupMergesSelectorsSharingKey(t *testing.T) {
	accessor := NewStaticMetadataAccessor()
	registerDeferredFixture(t, accessor, "app.SelOne",
		&groupSupplyingSelector{deferredStaticSelector{names: []string{"app.One"}, key: "merge"}}, "app.One")
	registerDeferredFixture(t, accessor, "app.SelTwo",
		&deferredStaticSelector{names: []string{"app.Two"}, key: "merge"}, "app.Two")
	accessor.Register(newMD("app.A", componentAnn(""), importAnn("app.SelOne", "app.SelTwo")))

	r, _, _ := newResolverFixture(accessor)
	graph, err := r.Resolve(NewComponentSource(mustRead(t, accessor, "app.A"), "a"))
	require.NoError(t, err)

	var order []string
	for _, src := range graph.Sources() {
		if src.IsImported() {
			order = append(order, src.ClassName())
		}
	}
	// The reversing group saw both selectors' output before expansion.
	assert.Equal(t, []string{"app.Two", "app.One"}, order)
}

func TestDeferredIsolatedGroupsWithoutKey(t *testing.T) {
	accessor := NewStaticMetadataAccessor()
	registerDeferredFixture(t, accessor, "app.SelOne",
		&deferredStaticSelector{names: []string{"app.One"}}, "app.One")
	registerDeferredFixture(t, accessor, "app.SelTwo",
		&deferredStaticSelector{names: []string{"app.Two"}}, "app.Two")
	accessor.Register(newMD("app.A", componentAnn(""), importAnn("app.SelOne", "app.SelTwo")))

	r, _, _ := newResolverFixture(accessor)
	graph, err := r.Resolve(NewComponentSource(mustRead(t, accessor, "app.A"), "a"))
	require.NoError(t, err)
	assert.NotNil(t, graph.get("app.One"))
	assert.NotNil(t, graph.get("app.Two"))
}

func TestDeferredSelectorReachedWhileDrainingRunsImmediately(t *testing.T) {
	accessor := NewStaticMetadataAccessor()
	// The first deferred selector imports a source that itself imports a
	// second deferred selector; during draining that one must not be queued
	// again.
	registerDeferredFixture(t, accessor, "app.InnerSel",
		&deferredStaticSelector{names: []string{"app.Inner"}}, "app.Inner")
	accessor.Register(newMD("app.Mid", componentAnn(""), importAnn("app.InnerSel")))
	registerDeferredFixture(t, accessor, "app.OuterSel",
		&deferredStaticSelector{names: []string{"app.Mid"}})
	accessor.Register(newMD("app.A", componentAnn(""), importAnn("app.OuterSel")))

	r, _, _ := newResolverFixture(accessor)
	graph, err := r.Resolve(NewComponentSource(mustRead(t, accessor, "app.A"), "a"))
	require.NoError(t, err)
	assert.NotNil(t, graph.get("app.Mid"))
	assert.NotNil(t, graph.get("app.Inner"))
}

func TestReconcileMethodOrder(t *testing.T) {
	reflective := []MethodMetadata{{Name: "b"}, {Name: "a"}, {Name: "c"}}

	t.Run("stable order wins when it covers all methods", func(t *testing.T) {
		got := reconcileMethodOrder(reflective, []string{"a", "b", "c"})
		assert.Equal(t, []string{"a", "b", "c"}, methodNames(got))
	})

	t.Run("incomplete stable order falls back to reflective", func(t *testing.T) {
		got := reconcileMethodOrder(reflective, []string{"a", "b"})
		assert.Equal(t, []string{"b", "a", "c"}, methodNames(got))
	})

	t.Run("stable order missing a method falls back", func(t *testing.T) {
		got := reconcileMethodOrder(reflective, []string{"a", "b", "x"})
		assert.Equal(t, []string{"b", "a", "c"}, methodNames(got))
	})

	t.Run("single method kept as-is", func(t *testing.T) {
		single := []MethodMetadata{{Name: "only"}}
		got := reconcileMethodOrder(single, nil)
		assert.Equal(t, []string{"only"}, methodNames(got))
	})

	t.Run("stable superset is fine", func(t *testing.T) {
		got := reconcileMethodOrder(reflective, []string{"c", "x", "a", "b"})
		assert.Equal(t, []string{"c", "a", "b"}, methodNames(got))
	})
}

func methodNames(methods []MethodMetadata) []string {
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		out = append(out, m.Name)
	}
	return out
}
