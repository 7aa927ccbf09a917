// Package ctypes encodes a lowered type mapping onto the wire, using
// hand-written google.golang.org/protobuf/encoding/protowire calls
// instead of protoc-generated stubs (see DESIGN.md for why). The
// message shapes mirror the teacher's own field naming conventions
// one level removed: each lowering.CType variant becomes a oneof
// submessage keyed by its Kind, the same shape the original Rust
// ctypes::CType enum took before being serialized.
package ctypes

import (
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/luishsr/binary-type-inference/internal/lowering"
)

const (
	fieldMappingEntry = 1

	fieldEntryKey   = 1
	fieldEntryValue = 2

	fieldCTypeID    = 1
	fieldCTypeAlias = 2
	fieldCTypePtr   = 3
	fieldCTypePrim  = 4
	fieldCTypeStruc = 5
	fieldCTypeUnion = 6
	fieldCTypeFunc  = 7

	fieldAliasTo = 1

	fieldPointerTo = 1

	fieldPrimitiveName = 1

	fieldFieldBitSize    = 1
	fieldFieldByteOffset = 2
	fieldFieldType       = 3

	fieldStructureFields = 1

	fieldUnionTargets = 1

	fieldParamIndex = 1
	fieldParamType  = 2

	fieldFunctionParams = 1
	fieldFunctionReturn = 2
	fieldFunctionHasRet = 3
)

// Marshal encodes a lowered TypeId -> CType mapping as a protobuf-wire
// CTypeMapping message: a map<uint32, CType>, i.e. one length-delimited
// entry submessage per type, each holding its key and its CType,
// emitted in ascending TypeId order. refs resolves a CType's AliasTarget (a sketch NodeRef, pre-
// finalization) to the TypeId Lower() assigned it, the same two-step
// "build ephemeral types, then resolve node refs" split the original
// convert_mapping_to_profobuf/node_to_ty pairing used.
//
// Every TypeId, byte offset, bit size, and parameter index in the
// input must fit in a uint32 — the wire schema's integer width — or
// Marshal returns a *lowering.OverflowError instead of silently
// truncating.
func Marshal(types map[lowering.TypeId]lowering.CType, refs map[lowering.NodeRef]lowering.TypeId) ([]byte, error) {
	ids := make([]lowering.TypeId, 0, len(types))
	for id := range types {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []byte
	for _, id := range ids {
		entry, err := marshalEntry(id, types[id], refs)
		if err != nil {
			return nil, err
		}
		out = protowire.AppendTag(out, fieldMappingEntry, protowire.BytesType)
		out = protowire.AppendBytes(out, entry)
	}
	return out, nil
}

func marshalEntry(id lowering.TypeId, ct lowering.CType, refs map[lowering.NodeRef]lowering.TypeId) ([]byte, error) {
	key, err := toUint32(int64(id), "type id")
	if err != nil {
		return nil, err
	}
	value, err := marshalCType(id, ct, refs)
	if err != nil {
		return nil, err
	}

	var b []byte
	b = protowire.AppendTag(b, fieldEntryKey, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(key))
	b = protowire.AppendTag(b, fieldEntryValue, protowire.BytesType)
	b = protowire.AppendBytes(b, value)
	return b, nil
}

func marshalCType(id lowering.TypeId, ct lowering.CType, refs map[lowering.NodeRef]lowering.TypeId) ([]byte, error) {
	idBytes, err := marshalTypeID(id)
	if err != nil {
		return nil, err
	}

	var inner []byte
	var innerField protowire.Number
	switch ct.Kind {
	case lowering.KindPrimitive:
		innerField = fieldCTypePrim
		inner = marshalPrimitive(ct.Primitive)
	case lowering.KindPointer:
		innerField = fieldCTypePtr
		b, err := marshalPointer(ct.PointerTarget)
		if err != nil {
			return nil, err
		}
		inner = b
	case lowering.KindAlias:
		innerField = fieldCTypeAlias
		resolved, ok := refs[ct.AliasTarget]
		b, err := marshalAlias(resolved, ok)
		if err != nil {
			return nil, err
		}
		inner = b
	case lowering.KindStructure:
		innerField = fieldCTypeStruc
		b, err := marshalStructure(ct.Fields)
		if err != nil {
			return nil, err
		}
		inner = b
	case lowering.KindUnion:
		innerField = fieldCTypeUnion
		b, err := marshalUnion(ct.Unions)
		if err != nil {
			return nil, err
		}
		inner = b
	case lowering.KindFunction:
		innerField = fieldCTypeFunc
		b, err := marshalFunction(ct.Params, ct.ReturnType)
		if err != nil {
			return nil, err
		}
		inner = b
	default:
		return nil, lowering.NewOverflowError("unrecognized CType kind during encoding")
	}

	var b []byte
	b = protowire.AppendTag(b, fieldCTypeID, protowire.BytesType)
	b = protowire.AppendBytes(b, idBytes)
	b = protowire.AppendTag(b, innerField, protowire.BytesType)
	b = protowire.AppendBytes(b, inner)
	return b, nil
}

func marshalTypeID(id lowering.TypeId) ([]byte, error) {
	v, err := toUint32(int64(id), "type id")
	if err != nil {
		return nil, err
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v))
	return b, nil
}

func marshalPrimitive(name string) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPrimitiveName, protowire.BytesType)
	b = protowire.AppendString(b, name)
	return b
}

func marshalPointer(target lowering.TypeId) ([]byte, error) {
	idBytes, err := marshalTypeID(target)
	if err != nil {
		return nil, err
	}
	var b []byte
	b = protowire.AppendTag(b, fieldPointerTo, protowire.BytesType)
	b = protowire.AppendBytes(b, idBytes)
	return b, nil
}

// marshalAlias emits an Alias referencing a resolved TypeId. An
// unresolved alias target (found=false) encodes as an empty Alias,
// mirroring the original's `mp.get(&tgt).map(...)` producing a nil
// to_type on a missing lookup rather than failing the whole encode.
func marshalAlias(resolved lowering.TypeId, found bool) ([]byte, error) {
	if !found {
		return nil, nil
	}
	idBytes, err := marshalTypeID(resolved)
	if err != nil {
		return nil, err
	}
	var b []byte
	b = protowire.AppendTag(b, fieldAliasTo, protowire.BytesType)
	b = protowire.AppendBytes(b, idBytes)
	return b, nil
}

func marshalStructure(fields []lowering.Field) ([]byte, error) {
	var b []byte
	for _, f := range fields {
		fb, err := marshalField(f)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldStructureFields, protowire.BytesType)
		b = protowire.AppendBytes(b, fb)
	}
	return b, nil
}

func marshalField(f lowering.Field) ([]byte, error) {
	bitSize, err := toUint32(f.BitSize, "field bit size")
	if err != nil {
		return nil, err
	}
	byteOffset, err := toUint32(f.ByteOffset, "field byte offset")
	if err != nil {
		return nil, err
	}
	typeBytes, err := marshalTypeID(f.Type)
	if err != nil {
		return nil, err
	}

	var b []byte
	b = protowire.AppendTag(b, fieldFieldBitSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(bitSize))
	b = protowire.AppendTag(b, fieldFieldByteOffset, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(byteOffset))
	b = protowire.AppendTag(b, fieldFieldType, protowire.BytesType)
	b = protowire.AppendBytes(b, typeBytes)
	return b, nil
}

func marshalUnion(targets []lowering.TypeId) ([]byte, error) {
	var b []byte
	for _, t := range targets {
		tb, err := marshalTypeID(t)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldUnionTargets, protowire.BytesType)
		b = protowire.AppendBytes(b, tb)
	}
	return b, nil
}

func marshalFunction(params []lowering.Parameter, ret *lowering.TypeId) ([]byte, error) {
	var b []byte
	for _, p := range params {
		pb, err := marshalParameter(p)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldFunctionParams, protowire.BytesType)
		b = protowire.AppendBytes(b, pb)
	}

	hasReturn := ret != nil
	if hasReturn {
		retBytes, err := marshalTypeID(*ret)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldFunctionReturn, protowire.BytesType)
		b = protowire.AppendBytes(b, retBytes)
	}
	b = protowire.AppendTag(b, fieldFunctionHasRet, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(hasReturn))
	return b, nil
}

func marshalParameter(p lowering.Parameter) ([]byte, error) {
	index, err := toUint32(int64(p.Index), "parameter index")
	if err != nil {
		return nil, err
	}
	typeBytes, err := marshalTypeID(p.Type)
	if err != nil {
		return nil, err
	}

	var b []byte
	b = protowire.AppendTag(b, fieldParamIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(index))
	b = protowire.AppendTag(b, fieldParamType, protowire.BytesType)
	b = protowire.AppendBytes(b, typeBytes)
	return b, nil
}

func toUint32(v int64, what string) (uint32, error) {
	if v < 0 || v > math.MaxUint32 {
		return 0, lowering.NewOverflowError(what + " does not fit in a uint32 wire field")
	}
	return uint32(v), nil
}
