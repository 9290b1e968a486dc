package scheduler

import (
	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/razel-build/razel/internal/command"
	"github.com/razel-build/razel/internal/id"
)

// reverseEdge records that producer's completion unblocks waiter.
type reverseEdge struct {
	producer id.CommandId
	waiter   id.CommandId
}

// createDependencyGraph turns, for every command, "input f is produced by
// command d" into a dependency edge, classifies the command as Ready or
// Waiting, then flushes the accumulated reverse edges. It also runs a real
// cycle check (a DFS topological sort via gonum) rather than relying only
// on an empty ready queue to signal a cycle.
func (s *Scheduler) createDependencyGraph() error {
	var rdeps []reverseEdge

	s.commands.Iter(func(c *command.Command) {
		for _, inputId := range c.Inputs {
			f := s.files.Get(inputId)
			if f.CreatingCommand == nil {
				continue
			}
			dep := *f.CreatingCommand
			c.UnfinishedDeps = append(c.UnfinishedDeps, dep)
			rdeps = append(rdeps, reverseEdge{producer: dep, waiter: c.Id})
		}
		if len(c.UnfinishedDeps) == 0 {
			c.ScheduleState = command.Ready
			s.ready = append(s.ready, c.Id)
		} else {
			c.ScheduleState = command.Waiting
			s.waiting[c.Id] = struct{}{}
		}
	})

	for _, e := range rdeps {
		producer := s.commands.Get(e.producer)
		producer.ReverseDeps = append(producer.ReverseDeps, e.waiter)
	}

	if err := checkForCycles(s.commands.Len(), rdeps); err != nil {
		return err
	}

	if len(s.ready) == 0 {
		return xerrors.New("circular dependency: no command is ready to run")
	}
	return nil
}

// checkForCycles builds a directed graph of dependency edges (waiter ->
// producer) and runs a topological sort; a gonum topo.Unorderable error
// names the strongly connected component that makes the graph cyclic.
func checkForCycles(numCommands int, rdeps []reverseEdge) error {
	g := simple.NewDirectedGraph()
	for i := 0; i < numCommands; i++ {
		g.AddNode(simple.Node(int64(i)))
	}
	for _, e := range rdeps {
		g.SetEdge(g.NewEdge(simple.Node(int64(e.waiter)), simple.Node(int64(e.producer))))
	}
	if _, err := topo.Sort(g); err != nil {
		if _, ok := err.(topo.Unorderable); ok {
			return xerrors.Errorf("circular dependency detected among commands: %w", err)
		}
		return err
	}
	return nil
}
