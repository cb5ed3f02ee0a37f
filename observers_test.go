package gestalt

import (
	"context"
	"errors"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddObserverAndNotify(t *testing.T) {
	factory := NewComponentFactory(nil)
	var seen []string
	obs := NewFunctionalObserver("test", func(_ context.Context, event cloudevents.Event) error {
		seen = append(seen, event.Type())
		return nil
	})
	require.NoError(t, factory.AddObserver(obs, EventTypeDefinitionRegistered))

	match := NewCloudEvent(EventTypeDefinitionRegistered, "test", nil, nil)
	other := NewCloudEvent(EventTypeSourceResolved, "test", nil, nil)
	require.NoError(t, factory.NotifyObservers(context.Background(), match))
	require.NoError(t, factory.NotifyObservers(context.Background(), other))

	assert.Equal(t, []string{EventTypeDefinitionRegistered}, seen)
}

func TestAddObserverNilRejected(t *testing.T) {
	factory := NewComponentFactory(nil)
	assert.ErrorIs(t, factory.AddObserver(nil), ErrObserverNil)
}

func TestReAddObserverMovesToEnd(t *testing.T) {
	factory := NewComponentFactory(nil)
	noop := func(context.Context, cloudevents.Event) error { return nil }
	first := NewFunctionalObserver("first", noop)
	second := NewFunctionalObserver("second", noop)
	require.NoError(t, factory.AddObserver(first))
	require.NoError(t, factory.AddObserver(second))
	require.NoError(t, factory.AddObserver(first))

	infos := factory.Observers()
	require.Len(t, infos, 2)
	assert.Equal(t, "second", infos[0].ID)
	assert.Equal(t, "first", infos[1].ID)
}

func TestNotifyContinuesPastFailingObserver(t *testing.T) {
	factory := NewComponentFactory(nil)
	boom := errors.New("boom")
	var reached bool
	require.NoError(t, factory.AddObserver(NewFunctionalObserver("failing",
		func(context.Context, cloudevents.Event) error { return boom })))
	require.NoError(t, factory.AddObserver(NewFunctionalObserver("after",
		func(context.Context, cloudevents.Event) error { reached = true; return nil })))

	err := factory.NotifyObservers(context.Background(), NewCloudEvent(EventTypeSourceResolved, "test", nil, nil))
	assert.ErrorIs(t, err, boom)
	assert.True(t, reached)
}

// tierObserver is an Observer with an optional precedence tier for the
// registration tests.
type tierObserver struct {
	id string
}

func (o *tierObserver) OnEvent(context.Context, cloudevents.Event) error { return nil }

func (o *tierObserver) ObserverID() string { return o.id }

type priorityObserver struct{ tierObserver }

func (o *priorityObserver) Order() int { return 0 }

func (o *priorityObserver) PriorityOrder() {}

type orderedObserver struct {
	tierObserver
	order int
}

func (o *orderedObserver) Order() int { return o.order }

type mergedAwareObserver struct{ tierObserver }

func (o *mergedAwareObserver) OnMergedDefinition(string, *Definition) {}

func TestRegisterObserversTiersAndChainEnds(t *testing.T) {
	factory := NewComponentFactory(nil)
	// Planted in inverted order.
	require.NoError(t, factory.Put("plain", NewInstanceDefinition("plain", &tierObserver{id: "plain"})))
	require.NoError(t, factory.Put("merged", NewInstanceDefinition("merged", &mergedAwareObserver{tierObserver{id: "merged"}})))
	require.NoError(t, factory.Put("ordered", NewInstanceDefinition("ordered", &orderedObserver{tierObserver: tierObserver{id: "ordered"}, order: 10})))
	require.NoError(t, factory.Put("priority", NewInstanceDefinition("priority", &priorityObserver{tierObserver{id: "priority"}})))

	orch := NewOrchestrator(nil)
	require.NoError(t, orch.RegisterObservers(factory))

	var ids []string
	for _, info := range factory.Observers() {
		ids = append(ids, info.ID)
	}
	assert.Equal(t, []string{
		"gestalt.observerChainChecker",
		"priority", "ordered", "plain",
		"merged", // merged-aware re-registered after all tiers
		"gestalt.innerObserverDetector",
	}, ids)
}

func TestInnerObserverDetectorRegistersCreatedObservers(t *testing.T) {
	factory := NewComponentFactory(nil)
	orch := NewOrchestrator(nil)
	require.NoError(t, orch.RegisterObservers(factory))

	inner := &tierObserver{id: "inner"}
	def := NewDefinition("innerComponent")
	def.Instance = inner
	require.NoError(t, factory.Put("innerComponent", def))

	event := NewCloudEvent(EventTypeComponentCreated, "test", nil,
		map[string]any{eventExtComponentName: "innerComponent"})
	require.NoError(t, factory.NotifyObservers(context.Background(), event))

	var ids []string
	for _, info := range factory.Observers() {
		ids = append(ids, info.ID)
	}
	assert.Contains(t, ids, "inner")
}

func TestEventIDsAreUnique(t *testing.T) {
	a := NewCloudEvent(EventTypeSourceResolved, "test", nil, nil)
	b := NewCloudEvent(EventTypeSourceResolved, "test", nil, nil)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, cloudevents.VersionV1, a.SpecVersion())
}
