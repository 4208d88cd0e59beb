package render

import "github.com/roach88/readmeplay/internal/wire"

type discard struct{}

func (discard) Send(wire.Message) {}
