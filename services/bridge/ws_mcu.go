//go:build rp2040 || rp2350

package bridge

import "errors"

var errNoWS = errors.New("websocket transports are host-only")

func newWSDialTransport(TransportConfig) (Transport, error)   { return nil, errNoWS }
func newWSListenTransport(TransportConfig) (Transport, error) { return nil, errNoWS }
