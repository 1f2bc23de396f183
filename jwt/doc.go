// Package jwt encodes and decodes the signed claim sets carried by goToken
// artifacts, with strict signature-first validation semantics and a typed
// error taxonomy suitable for low-latency verification paths.
package jwt
