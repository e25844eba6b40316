package lib

import (
	"fmt"

	rp "github.com/Clouded-Sabre/ringpool/lib"
)

var (
	emptySlice   []byte
	bufferLength = 1500 // default datagram buffer size, overridden per channel
)

func setBufferLength(length int) {
	bufferLength = length
	emptySlice = make([]byte, length)
}

// DatagramBuffer is the ring pool element holding one received datagram.
type DatagramBuffer struct {
	dataBytes []byte
	length    int
}

// NewDatagramBuffer creates a pool element; the buffer size comes from the
// channel that owns the pool.
func NewDatagramBuffer(params ...interface{}) rp.DataInterface {
	pBufferLength := bufferLength
	if len(params) == 1 {
		if n, ok := params[0].(int); ok && n > 0 {
			pBufferLength = n
		}
	}

	if len(emptySlice) == 0 {
		emptySlice = make([]byte, pBufferLength)
	}

	return &DatagramBuffer{
		dataBytes: make([]byte, pBufferLength),
	}
}

// Buffer exposes the full backing slice for the channel read to fill.
func (d *DatagramBuffer) Buffer() []byte {
	return d.dataBytes
}

// SetLength records how many bytes of the buffer a read actually filled.
func (d *DatagramBuffer) SetLength(n int) {
	d.length = n
}

// Reset resets the content of the buffer
func (d *DatagramBuffer) Reset() {
	copy(d.dataBytes, emptySlice)
	d.length = 0
}

// PrintContent prints the content of the buffer
func (d *DatagramBuffer) PrintContent() {
	fmt.Println("Content:", d.dataBytes[:d.length])
}

func (d *DatagramBuffer) Copy(src []byte) error {
	if len(src) > len(d.dataBytes) {
		return fmt.Errorf("DatagramBuffer Copy: source byte slice(%d) is longer than bufferLength(%d)", len(src), len(d.dataBytes))
	}
	if len(src) == 0 {
		return fmt.Errorf("DatagramBuffer Copy: source byte slice is empty")
	}
	copy(d.dataBytes, src)
	d.length = len(src)
	return nil
}

func (d *DatagramBuffer) GetSlice() []byte {
	return d.dataBytes[:d.length]
}

func newBufferPool(poolSize, bufLength int) *rp.RingPool {
	setBufferLength(bufLength)
	return rp.NewRingPool("SimpleTCP: ", poolSize, NewDatagramBuffer, bufLength)
}
