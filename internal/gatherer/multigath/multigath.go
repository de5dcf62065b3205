package multigath

import (
	"github.com/programme-lv/tmjob/api"
	"github.com/programme-lv/tmjob/internal/gatherer"
)

type multiGatherer struct {
	gatherers []gatherer.Gatherer
}

// New fans every event out to gs in order. Nil gatherers are ignored.
func New(gs ...gatherer.Gatherer) gatherer.Gatherer {
	m := &multiGatherer{}
	for _, g := range gs {
		if g != nil {
			m.gatherers = append(m.gatherers, g)
		}
	}
	return m
}

func (m *multiGatherer) StartJob(systemInfo string) {
	for _, g := range m.gatherers {
		g.StartJob(systemInfo)
	}
}

func (m *multiGatherer) StartStep(name string) {
	for _, g := range m.gatherers {
		g.StartStep(name)
	}
}

func (m *multiGatherer) FinishStep(name string, data *api.RunData) {
	for _, g := range m.gatherers {
		g.FinishStep(name, data)
	}
}

func (m *multiGatherer) SkipStep(name string, reason string) {
	for _, g := range m.gatherers {
		g.SkipStep(name, reason)
	}
}

func (m *multiGatherer) FinishJob(errIfAny error) {
	for _, g := range m.gatherers {
		g.FinishJob(errIfAny)
	}
}
