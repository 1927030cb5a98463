// Package bx contains small fixed-width byte encoding helpers shared by the
// storage, btree, record and rowid packages. All multi-byte integers are
// big-endian, matching the on-disk node format.
package bx

import "encoding/binary"

var BE = binary.BigEndian

func U16(b []byte) uint16 { return BE.Uint16(b) }
func U32(b []byte) uint32 { return BE.Uint32(b) }
func U64(b []byte) uint64 { return BE.Uint64(b) }

func PutU16(b []byte, v uint16) { BE.PutUint16(b, v) }
func PutU32(b []byte, v uint32) { BE.PutUint32(b, v) }
func PutU64(b []byte, v uint64) { BE.PutUint64(b, v) }

func I32(b []byte) int32 { return int32(U32(b)) }
func I64(b []byte) int64 { return int64(U64(b)) }

func PutI32(b []byte, v int32) { PutU32(b, uint32(v)) }
func PutI64(b []byte, v int64) { PutU64(b, uint64(v)) }
