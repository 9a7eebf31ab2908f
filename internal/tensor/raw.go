package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Device represents the compute device where tensor data resides.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// LoD is variable-length sequence metadata ("level of detail") carried
// alongside tensor data. The engine copies it across scope boundaries but
// never interprets it; only sequence-aware kernels do.
type LoD [][]int

// Clone returns a deep copy of the LoD.
func (l LoD) Clone() LoD {
	if l == nil {
		return nil
	}
	clone := make(LoD, len(l))
	for i, level := range l {
		clone[i] = append([]int(nil), level...)
	}
	return clone
}

// tensorBuffer is a reference-counted shared buffer. It enables zero-copy
// aliasing of storage across scopes (ShareDataWith) and cheap cloning.
type tensorBuffer struct {
	data     []byte
	refCount atomic.Int32
	mu       sync.Mutex // For safe deallocation
}

// newTensorBuffer creates a new reference-counted buffer with refCount = 1.
func newTensorBuffer(size int) *tensorBuffer {
	buf := &tensorBuffer{
		data: make([]byte, size),
	}
	buf.refCount.Store(1)
	return buf
}

// addRef increments the reference count.
func (tb *tensorBuffer) addRef() {
	tb.refCount.Add(1)
}

// release decrements the reference count and deallocates if it reaches 0.
func (tb *tensorBuffer) release() {
	if tb.refCount.Add(-1) == 0 {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		tb.data = nil
	}
}

// RawTensor is the low-level tensor representation: a typed, shaped buffer
// with optional sequence metadata. Storage may be shared zero-copy between
// tensors via ShareDataWith; a scope destroying an aliasing tensor never
// invalidates the storage while another reference remains.
type RawTensor struct {
	buffer *tensorBuffer // Shared reference-counted buffer
	shape  Shape         // Tensor dimensions
	stride []int         // Memory strides (row-major)
	dtype  DataType      // Runtime type information
	device Device        // Compute device
	offset int           // Offset for slicing/views
	lod    LoD           // Sequence-length metadata (may be nil)
}

// NewRaw creates a new RawTensor with the given shape and type.
// Memory is allocated and zero-initialized.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	numElements := shape.NumElements()
	byteSize := numElements * dtype.Size()

	return &RawTensor{
		buffer: newTensorBuffer(byteSize),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
		offset: 0,
	}, nil
}

// Empty returns a zero-element placeholder tensor on the given device.
// Placeholders are what variables hold before storage is linked or allocated.
func Empty(device Device) *RawTensor {
	t, err := NewRaw(Shape{0}, Float32, device)
	if err != nil {
		panic(err) // Shape{0} always validates
	}
	return t
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// LoD returns the tensor's sequence metadata (may be nil).
func (r *RawTensor) LoD() LoD {
	return r.lod
}

// SetLoD replaces the tensor's sequence metadata.
func (r *RawTensor) SetLoD(lod LoD) {
	r.lod = lod.Clone()
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Initialized reports whether the tensor holds any elements.
// Gradient placeholders stay uninitialized until first use.
func (r *RawTensor) Initialized() bool {
	return r.buffer != nil && r.NumElements() > 0
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.buffer.data[r.offset:]
}

// Mutable reallocates the tensor's storage in place for the given shape,
// dtype and device, releasing any previously held or shared buffer.
// The new storage is zero-initialized.
func (r *RawTensor) Mutable(shape Shape, dtype DataType, device Device) error {
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("invalid shape: %w", err)
	}
	if r.buffer != nil {
		r.buffer.release()
	}
	r.buffer = newTensorBuffer(shape.NumElements() * dtype.Size())
	r.shape = shape.Clone()
	r.stride = shape.ComputeStrides()
	r.dtype = dtype
	r.device = device
	r.offset = 0
	return nil
}

// ShareDataWith makes this tensor a zero-copy alias of src's storage: shape,
// dtype, device and the underlying buffer are adopted from src. Writes through
// either tensor are visible through the other. Sequence metadata is NOT
// shared; callers copy it explicitly with SetLoD when required.
func (r *RawTensor) ShareDataWith(src *RawTensor) {
	if src == r {
		return
	}
	src.buffer.addRef()
	if r.buffer != nil {
		r.buffer.release()
	}
	r.buffer = src.buffer
	r.shape = src.shape.Clone()
	r.stride = append([]int(nil), src.stride...)
	r.dtype = src.dtype
	r.device = src.device
	r.offset = src.offset
}

// SharesDataWith reports whether both tensors alias the same storage.
func (r *RawTensor) SharesDataWith(other *RawTensor) bool {
	return r.buffer != nil && r.buffer == other.buffer
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	if r.NumElements() == 0 {
		return nil
	}
	data := r.buffer.data[r.offset:]
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	if r.NumElements() == 0 {
		return nil
	}
	data := r.buffer.data[r.offset:]
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	if r.dtype != Int32 {
		panic(fmt.Sprintf("tensor dtype is %s, not int32", r.dtype))
	}
	if r.NumElements() == 0 {
		return nil
	}
	data := r.buffer.data[r.offset:]
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 {
	if r.dtype != Int64 {
		panic(fmt.Sprintf("tensor dtype is %s, not int64", r.dtype))
	}
	if r.NumElements() == 0 {
		return nil
	}
	data := r.buffer.data[r.offset:]
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*int64)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsUint8 interprets the data as []uint8.
// Panics if the tensor's dtype is not Uint8.
func (r *RawTensor) AsUint8() []uint8 {
	if r.dtype != Uint8 {
		panic(fmt.Sprintf("tensor dtype is %s, not uint8", r.dtype))
	}
	return r.buffer.data[r.offset:] // Already []byte = []uint8
}

// AsBool interprets the data as []bool.
// Panics if the tensor's dtype is not Bool.
func (r *RawTensor) AsBool() []bool {
	if r.dtype != Bool {
		panic(fmt.Sprintf("tensor dtype is %s, not bool", r.dtype))
	}
	if r.NumElements() == 0 {
		return nil
	}
	data := r.buffer.data[r.offset:]
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*bool)(unsafe.Pointer(&data[0])), r.NumElements())
}

// Release decrements the buffer reference count and deallocates if it
// reaches 0. Storage shared via ShareDataWith survives until every alias
// has been released.
func (r *RawTensor) Release() {
	r.buffer.release()
}
