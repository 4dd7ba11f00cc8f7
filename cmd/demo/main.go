// Command demo runs a small presentation scenario end to end: an inbox
// screen presents a detail case, the detail schedules a load effect, the
// user closes the detail before the load completes, and a stale refresh
// arriving after dismissal is dropped. Run with -events slog to watch the
// runtime's diagnostics events; -filter narrows them with an expression.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/composable-features/runtime/enum"
	"github.com/composable-features/runtime/identity"
	"github.com/composable-features/runtime/observability"
	"github.com/composable-features/runtime/reducer"
	"github.com/composable-features/runtime/store"
	"github.com/composable-features/runtime/tracking"
)

type screenTag string

const (
	tagNone   screenTag = "none"
	tagDetail screenTag = "detail"
)

type detailState struct {
	ItemID  int    `json:"item_id"`
	Summary string `json:"summary"`
}

type detailAction string

const (
	detailRefresh detailAction = "refresh"
	detailLoaded  detailAction = "loaded"
	detailClose   detailAction = "close"
)

type screenState struct {
	Destination *enum.Composite[screenTag] `json:"destination"`
	Title       string                     `json:"title"`
}

type screenAction interface{ isScreenAction() }

type presentDetail struct {
	ItemID int
}

func (presentDetail) isScreenAction() {}

type detailEnvelope struct {
	Inner detailAction
}

func (detailEnvelope) isScreenAction()    {}
func (detailEnvelope) CaseTag() screenTag { return tagDetail }

// detailReducer loads a summary when refreshed. The load is deliberately
// slow so the demo can dismiss the detail while it is still in flight.
func detailReducer(s detailState, a detailAction) (detailState, []reducer.Effect[detailAction]) {
	switch a {
	case detailRefresh:
		return s, []reducer.Effect[detailAction]{
			reducer.Run("load", func(ctx context.Context, send func(detailAction)) {
				select {
				case <-time.After(200 * time.Millisecond):
					send(detailLoaded)
				case <-ctx.Done():
				}
			}),
		}
	case detailLoaded:
		s.Summary = fmt.Sprintf("item %d loaded", s.ItemID)
		return s, nil
	default:
		return s, nil
	}
}

func main() {
	var (
		events = flag.String("events", "noop", "Diagnostics sink: noop or slog")
		filter = flag.String("filter", "", "Event filter rule, e.g. 'type == \"action.drop\"'")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))

	sink, err := observability.GetObserver(*events)
	if err != nil {
		log.Fatalf("Failed to resolve events sink: %v", err)
	}
	if *filter != "" {
		filtered, err := observability.NewFilterObserver(sink, *filter)
		if err != nil {
			log.Fatalf("Failed to compile filter: %v", err)
		}
		sink = filtered
	}

	metrics := store.NewMetrics()
	observer := observability.NewMultiObserver(metrics, sink)
	registry := identity.NewRegistry()
	registrar := tracking.NewRegistrar(observer)
	screenID := registry.Allocate()

	initial := screenState{
		Destination: enum.NewComposite(registry, registrar, screenID, "destination", tagNone, nil),
		Title:       "inbox",
	}

	route := reducer.MustCases(
		func(s screenState) *enum.Composite[screenTag] { return s.Destination },
		observer,
		reducer.Composed(tagDetail, detailReducer,
			func(a screenAction) (detailAction, bool) {
				env, ok := a.(detailEnvelope)
				return env.Inner, ok
			},
			func(a detailAction) screenAction { return detailEnvelope{Inner: a} },
		),
	)

	lifecycle := func(s screenState, a screenAction) (screenState, []reducer.Effect[screenAction]) {
		switch act := a.(type) {
		case presentDetail:
			s.Destination.Transition(tagDetail, detailState{ItemID: act.ItemID})
		case detailEnvelope:
			if act.Inner == detailClose {
				s.Destination.Transition(tagNone, nil)
			}
		}
		return s, nil
	}

	s := store.New(initial, reducer.Combine(route, lifecycle),
		store.WithRegistry[screenState, screenAction](registry),
		store.WithRegistrar[screenState, screenAction](registrar),
		store.WithObserver[screenState, screenAction](observer),
	)
	defer s.Close()

	// A subscriber interested in the destination. Registration is
	// observe-once, so render re-reads (and thereby re-registers) after
	// each notification; the callback itself must not call back into the
	// store, because it fires inside Send.
	notify := tracking.ObserverFunc(func(id identity.ID, field tracking.FieldKey) {
		fmt.Printf("   will change: %s of %s\n", field, id)
	})
	render := func() {
		s.Observe(notify, func(state screenState) {
			fmt.Printf("screen: title=%q destination=%s\n", state.Title, state.Destination.Tag())
		})
	}
	render()

	fmt.Println("-> present detail for item 42")
	s.Send(presentDetail{ItemID: 42})
	render()

	fmt.Println("-> refresh, then close before the load completes")
	s.Send(detailEnvelope{Inner: detailRefresh})
	s.Send(detailEnvelope{Inner: detailClose})
	render()

	fmt.Println("-> a stale refresh after dismissal")
	s.Send(detailEnvelope{Inner: detailRefresh})
	s.Wait()
	render()

	snapshot, err := s.Snapshot()
	if err != nil {
		log.Fatalf("Failed to snapshot state: %v", err)
	}
	fmt.Printf("\nfinal state: %s\n", snapshot)

	counts := metrics.Snapshot()
	fmt.Printf("actions sent: %d  dropped: %d  effects launched: %d  cancelled: %d  case retirements: %d\n",
		counts.ActionsSent, counts.ActionsDropped,
		counts.EffectsLaunched, counts.EffectsCancelled, counts.CaseRetirements)
}
