package types

// EmptyCodeHash is keccak256 of the empty byte string. It is the code hash
// of every account without code.
var EmptyCodeHash = HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
