package types

// Version is the canonical project version.
// The CLI, the chunk frame contract and the publish payloads share this
// version under the lockstep versioning policy.
const Version = "0.3.0"
