// Package ratelimit implements named fixed-window rate limits.
//
// A Limiter holds policies by name. Each policy owns a CounterStore, either
// an in-process MemoryStore or a RedisStore shared by every instance. A
// store fault never lets a request through: Check reports it as a denial
// and returns the error.
package ratelimit
