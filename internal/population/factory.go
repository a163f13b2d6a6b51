package population

import (
	"errors"
	"fmt"
)

const (
	KindUnbounded      = "unbounded"
	KindSynchronous    = "synchronous"
	KindSerialTransfer = "serial-transfer"
	KindGrid           = "grid"
	KindPools          = "pools"
)

var ErrUnknownStrategy = errors.New("unknown population strategy")

// Config selects and parameterizes a strategy by name.
type Config struct {
	Kind           string
	SerialTransfer SerialTransferConfig
	GridWidth      int
	GridHeight     int
	Pools          PoolsConfig
}

func Kinds() []string {
	return []string{KindGrid, KindPools, KindSerialTransfer, KindSynchronous, KindUnbounded}
}

func New[O any](cfg Config) (Strategy[O], error) {
	switch cfg.Kind {
	case "", KindUnbounded:
		return NewUnbounded[O](), nil
	case KindSynchronous:
		return NewSynchronous[O](), nil
	case KindSerialTransfer:
		return NewSerialTransfer[O](cfg.SerialTransfer)
	case KindGrid:
		return NewGrid[O](cfg.GridWidth, cfg.GridHeight)
	case KindPools:
		return NewPools[O](cfg.Pools)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, cfg.Kind)
	}
}
