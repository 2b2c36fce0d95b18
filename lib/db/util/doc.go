// Package util provides small helpers shared by the KVDB engines: seed generation, the seeded
// FNV-1a string hash used for shard selection and the shard distribution statistics reported
// by GetInfo.
package util
