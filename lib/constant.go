package lib

// Flag constants
const (
	ACKFlag uint8 = 1 << 4
	SYNFlag uint8 = 1 << 1
	FINFlag uint8 = 1 << 0
)

const (
	TcpHeaderLength   = 20   // options not included
	DefaultWindowSize = 4096 // advertised receive window; never consumed, the engine carries no data
)
