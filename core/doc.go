// Package core implements the broker session lifecycle: an encrypted
// credential vault contract, provider adapter contracts, the in-memory
// session store with its state machine, and the Service that coordinates
// connect, redirect completion, refresh, and disconnect flows.
package core
