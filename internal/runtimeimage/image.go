// Package runtimeimage wraps the raw binary bytes (§6 "Binary bytes"
// input) together with the global address-base offset, so the
// points-to layer can translate a stack- or heap-normalized address
// into an image-relative byte for diagnostic purposes.
package runtimeimage

// Image is a loaded binary's bytes plus the offset that was applied
// when it was mapped into the address space the IR's addresses refer
// to.
type Image struct {
	Bytes      []byte
	BaseOffset int64
}

// New wraps raw bytes with the given base offset.
func New(bytes []byte, baseOffset int64) *Image {
	return &Image{Bytes: bytes, BaseOffset: baseOffset}
}

// ByteAt returns the byte at the given runtime address, translated by
// the image's base offset. The second return value is false if the
// address falls outside the mapped bytes.
func (img *Image) ByteAt(addr uint64) (byte, bool) {
	relative := int64(addr) - img.BaseOffset
	if relative < 0 || relative >= int64(len(img.Bytes)) {
		return 0, false
	}
	return img.Bytes[relative], true
}

// Contains reports whether addr falls within the mapped image.
func (img *Image) Contains(addr uint64) bool {
	_, ok := img.ByteAt(addr)
	return ok
}
