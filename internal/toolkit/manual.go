package toolkit

import "github.com/hsiatein/helenium/internal/proto"

// Manual is a statically authored tool description read from a manual
// file on disk rather than registered in-process by a running
// service. Grounded on heleny-proto's ToolManual/ToolCommand, trimmed
// to what the registry actually consults: a factory supplies its own
// invocation surface (see Factory.Manual), so a static Manual exists
// purely to advertise a ToolAbstract for a tool this build doesn't
// (yet) wire a Go factory for.
type Manual struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// toAbstract projects a Manual into the read-model published to Hub,
// marked unavailable since a manual alone never satisfies GetToolkit —
// only a registered Factory can.
func (m Manual) toAbstract() proto.ToolAbstract {
	return proto.ToolAbstract{Name: m.Name, Description: m.Description, Enabled: false}
}
