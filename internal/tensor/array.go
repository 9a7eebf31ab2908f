package tensor

// TensorArray is an ordered sequence of tensors used as one aggregate
// gradient-bearing value across loop iterations. Slots created by Resize are
// empty placeholders until storage is linked into them.
type TensorArray struct {
	tensors []*RawTensor
	device  Device
}

// NewTensorArray creates an empty tensor array on the given device.
func NewTensorArray(device Device) *TensorArray {
	return &TensorArray{device: device}
}

// Len returns the number of slots.
func (a *TensorArray) Len() int {
	return len(a.tensors)
}

// At returns the tensor in slot i.
func (a *TensorArray) At(i int) *RawTensor {
	return a.tensors[i]
}

// Append adds a tensor as the last slot.
func (a *TensorArray) Append(t *RawTensor) {
	a.tensors = append(a.tensors, t)
}

// Resize grows or shrinks the array to n slots. New slots are empty
// placeholders; truncated slots are released.
func (a *TensorArray) Resize(n int) {
	for len(a.tensors) > n {
		last := a.tensors[len(a.tensors)-1]
		if last != nil {
			last.Release()
		}
		a.tensors = a.tensors[:len(a.tensors)-1]
	}
	for len(a.tensors) < n {
		a.tensors = append(a.tensors, Empty(a.device))
	}
}
