package knowledge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pratibhabharti18/Memory-Bank/internal/models"
	"github.com/pratibhabharti18/Memory-Bank/internal/reasoning"
)

// minNotesForInsights is the floor below which insight generation is
// skipped entirely and the insight list resolves to empty.
const minNotesForInsights = 2

// Synchronizer recomputes the derived knowledge (relationship graph
// and insights) whenever the active note set changes. The two
// reasoning calls run concurrently, each behind its own failure
// boundary: one failing leaves that half of the derived state stale
// but consistent while the other half still applies. Results are
// replaced wholesale, never merged, and a stale recomputation can
// never overwrite a fresher one: every trigger carries a sequence
// number and results are dropped unless they belong to the newest
// trigger. Superseded in-flight runs are also cancelled outright.
type Synchronizer struct {
	reasoner reasoning.Service
	timeout  time.Duration
	logger   *zap.Logger

	mu         sync.RWMutex
	graph      models.KnowledgeGraph
	insights   []models.Insight
	seq        uint64
	inflight   int
	cancelPrev context.CancelFunc
	done       chan struct{} // closed per run, tests only
}

func NewSynchronizer(reasoner reasoning.Service, timeout time.Duration, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		reasoner: reasoner,
		timeout:  timeout,
		logger:   logger,
		graph:    models.KnowledgeGraph{Nodes: []models.GraphNode{}, Links: []models.GraphLink{}},
		insights: []models.Insight{},
	}
}

// Run consumes active-set snapshots until the context is cancelled.
func (s *Synchronizer) Run(ctx context.Context, changes <-chan []models.Note) {
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-changes:
			if !ok {
				return
			}
			s.Trigger(ctx, snapshot)
		}
	}
}

// Trigger starts a recomputation for the given active snapshot,
// superseding any run still in flight.
func (s *Synchronizer) Trigger(ctx context.Context, active []models.Note) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	if s.cancelPrev != nil {
		s.cancelPrev()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelPrev = cancel
	s.inflight++
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	go s.run(runCtx, cancel, seq, active, done)
}

func (s *Synchronizer) run(ctx context.Context, cancel context.CancelFunc, seq uint64, active []models.Note, done chan struct{}) {
	defer func() {
		cancel()
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
		close(done)
	}()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		callCtx, callCancel := context.WithTimeout(ctx, s.timeout)
		defer callCancel()

		graph, err := s.reasoner.DiscoverRelationships(callCtx, active)
		if err != nil {
			s.logger.Warn("Relationship discovery failed, keeping previous graph",
				zap.Error(err),
				zap.Uint64("trigger", seq))
			return
		}
		s.applyGraph(seq, *graph)
	}()

	go func() {
		defer wg.Done()
		if len(active) < minNotesForInsights {
			s.applyInsights(seq, []models.Insight{})
			return
		}

		callCtx, callCancel := context.WithTimeout(ctx, s.timeout)
		defer callCancel()

		insights, err := s.reasoner.GenerateInsights(callCtx, active)
		if err != nil {
			s.logger.Warn("Insight generation failed, keeping previous insights",
				zap.Error(err),
				zap.Uint64("trigger", seq))
			return
		}
		s.applyInsights(seq, insights)
	}()

	wg.Wait()
}

func (s *Synchronizer) applyGraph(seq uint64, graph models.KnowledgeGraph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return
	}
	s.graph = graph
}

func (s *Synchronizer) applyInsights(seq uint64, insights []models.Insight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return
	}
	s.insights = insights
}

// Graph returns the current relationship graph snapshot.
func (s *Synchronizer) Graph() models.KnowledgeGraph {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graph := models.KnowledgeGraph{
		Nodes: make([]models.GraphNode, len(s.graph.Nodes)),
		Links: make([]models.GraphLink, len(s.graph.Links)),
	}
	copy(graph.Nodes, s.graph.Nodes)
	copy(graph.Links, s.graph.Links)
	return graph
}

// Insights returns the current insight snapshot.
func (s *Synchronizer) Insights() []models.Insight {
	s.mu.RLock()
	defer s.mu.RUnlock()

	insights := make([]models.Insight, len(s.insights))
	copy(insights, s.insights)
	return insights
}

// Processing reports whether any recomputation is still in flight.
// UI feedback only, not a correctness signal.
func (s *Synchronizer) Processing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// wait blocks until the most recently triggered run resolves.
func (s *Synchronizer) wait() {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done != nil {
		<-done
	}
}
