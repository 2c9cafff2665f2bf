package soroban

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/stellar/go-stellar-sdk/strkey"
	"github.com/stellar/go-stellar-sdk/xdr"
)

var (
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	mask64    = new(big.Int).SetUint64(^uint64(0))
)

// DecodeScVal decodes a base64 XDR ScVal.
func DecodeScVal(b64 string) (xdr.ScVal, error) {
	var val xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(b64, &val); err != nil {
		return xdr.ScVal{}, errors.Wrap(err, "decode scval")
	}
	return val, nil
}

// EncodeScVal encodes an ScVal as base64 XDR.
func EncodeScVal(val xdr.ScVal) (string, error) {
	out, err := xdr.MarshalBase64(val)
	if err != nil {
		return "", errors.Wrap(err, "encode scval")
	}
	return out, nil
}

// ScValString returns the text of a symbol or string value.
func ScValString(val xdr.ScVal) (string, bool) {
	if sym, ok := val.GetSym(); ok {
		return string(sym), true
	}
	if str, ok := val.GetStr(); ok {
		return string(str), true
	}
	return "", false
}

// ScValToBigInt converts any integer ScVal into a big.Int without loss.
func ScValToBigInt(val xdr.ScVal) (*big.Int, error) {
	switch val.Type {
	case xdr.ScValTypeScvI128:
		parts := val.MustI128()
		hi := big.NewInt(int64(parts.Hi))
		hi.Lsh(hi, 64)
		return hi.Add(hi, new(big.Int).SetUint64(uint64(parts.Lo))), nil
	case xdr.ScValTypeScvU128:
		parts := val.MustU128()
		hi := new(big.Int).SetUint64(uint64(parts.Hi))
		hi.Lsh(hi, 64)
		return hi.Add(hi, new(big.Int).SetUint64(uint64(parts.Lo))), nil
	case xdr.ScValTypeScvI64:
		return big.NewInt(int64(val.MustI64())), nil
	case xdr.ScValTypeScvU64:
		return new(big.Int).SetUint64(uint64(val.MustU64())), nil
	case xdr.ScValTypeScvI32:
		return big.NewInt(int64(val.MustI32())), nil
	case xdr.ScValTypeScvU32:
		return big.NewInt(int64(val.MustU32())), nil
	default:
		return nil, errors.Errorf("scval %s is not an integer", val.Type)
	}
}

// ScValToUint32 converts a u32 ScVal.
func ScValToUint32(val xdr.ScVal) (uint32, error) {
	u, ok := val.GetU32()
	if !ok {
		return 0, errors.Errorf("scval %s is not u32", val.Type)
	}
	return uint32(u), nil
}

// ScValToAddress renders an address ScVal as a strkey (C... or G...).
func ScValToAddress(val xdr.ScVal) (string, error) {
	addr, ok := val.GetAddress()
	if !ok {
		return "", errors.Errorf("scval %s is not an address", val.Type)
	}
	if id, ok := addr.GetContractId(); ok {
		return strkey.Encode(strkey.VersionByteContract, id[:])
	}
	if acct, ok := addr.GetAccountId(); ok {
		return acct.Address(), nil
	}
	return "", errors.Errorf("unsupported address type %s", addr.Type)
}

// ScValToMap returns a map value keyed by symbol or string keys.
func ScValToMap(val xdr.ScVal) (map[string]xdr.ScVal, error) {
	m, ok := val.GetMap()
	if !ok || m == nil {
		return nil, errors.Errorf("scval %s is not a map", val.Type)
	}
	out := make(map[string]xdr.ScVal, len(*m))
	for _, entry := range *m {
		key, ok := ScValString(entry.Key)
		if !ok {
			return nil, errors.Errorf("unsupported map key %s", entry.Key.Type)
		}
		out[key] = entry.Val
	}
	return out, nil
}

// ScValToVec returns the elements of a vector value.
func ScValToVec(val xdr.ScVal) ([]xdr.ScVal, error) {
	v, ok := val.GetVec()
	if !ok || v == nil {
		return nil, errors.Errorf("scval %s is not a vec", val.Type)
	}
	return []xdr.ScVal(*v), nil
}

// SymbolScVal builds a symbol value.
func SymbolScVal(s string) xdr.ScVal {
	sym := xdr.ScSymbol(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}
}

// StringScVal builds a string value.
func StringScVal(s string) xdr.ScVal {
	str := xdr.ScString(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvString, Str: &str}
}

// Uint32ScVal builds a u32 value.
func Uint32ScVal(n uint32) xdr.ScVal {
	u := xdr.Uint32(n)
	return xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &u}
}

// Int128ScVal builds an i128 value.
func Int128ScVal(v *big.Int) (xdr.ScVal, error) {
	if v == nil {
		return xdr.ScVal{}, errors.New("nil integer")
	}
	if v.Cmp(maxInt128) > 0 || v.Cmp(minInt128) < 0 {
		return xdr.ScVal{}, errors.Errorf("%s overflows i128", v)
	}
	lo := new(big.Int).And(v, mask64)
	hi := new(big.Int).Rsh(v, 64)
	parts := xdr.Int128Parts{Hi: xdr.Int64(hi.Int64()), Lo: xdr.Uint64(lo.Uint64())}
	return xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &parts}, nil
}

// MapScVal builds a map value with symbol keys, in the given key order.
func MapScVal(keys []string, vals []xdr.ScVal) (xdr.ScVal, error) {
	if len(keys) != len(vals) {
		return xdr.ScVal{}, errors.New("map keys and values differ in length")
	}
	entries := make(xdr.ScMap, 0, len(keys))
	for i, key := range keys {
		entries = append(entries, xdr.ScMapEntry{Key: SymbolScVal(key), Val: vals[i]})
	}
	m := &entries
	return xdr.ScVal{Type: xdr.ScValTypeScvMap, Map: &m}, nil
}

// VecScVal builds a vector value.
func VecScVal(vals ...xdr.ScVal) xdr.ScVal {
	v := xdr.ScVec(vals)
	vp := &v
	return xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &vp}
}

// ContractAddress parses a C... strkey into an ScAddress.
func ContractAddress(contractID string) (xdr.ScAddress, error) {
	raw, err := strkey.Decode(strkey.VersionByteContract, contractID)
	if err != nil {
		return xdr.ScAddress{}, errors.Wrapf(err, "invalid contract id %s", contractID)
	}
	var id xdr.ContractId
	copy(id[:], raw)
	return xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract, ContractId: &id}, nil
}

// ContractAddressScVal wraps a contract strkey as an address ScVal.
func ContractAddressScVal(contractID string) (xdr.ScVal, error) {
	addr, err := ContractAddress(contractID)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &addr}, nil
}
