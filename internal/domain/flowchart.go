package domain

import "time"

// Flowchart is the metadata row for one diagram. The diagram itself
// (nodes, edges, viewport) is the engine's wire tuple serialized into
// StateJSON; the engine owns its shape, storage treats it as opaque.
type Flowchart struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StateJSON string    `json:"stateJson"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type FlowchartStore interface {
	CreateFlowchart(f *Flowchart) error
	GetFlowchart(id string) (*Flowchart, error)
	ListFlowcharts() ([]Flowchart, error)
	UpdateFlowchart(f *Flowchart) error
	SaveState(id, stateJSON string) error
	DeleteFlowchart(id string) error
}
