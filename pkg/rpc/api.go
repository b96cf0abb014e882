package rpc

import "encoding/json"

// Method is a JSON-RPC method name.
type Method string

func (m Method) String() string {
	return string(m)
}

// ============================================================================
// Chain methods
// ============================================================================

const (
	// ChainGetHeadMethod returns the hash of the best block.
	ChainGetHeadMethod          Method = "chain_getHead"
	// ChainGetBlockHashMethod returns the hash of the block at a height, or of
	// the best block when called without parameters.
	ChainGetBlockHashMethod     Method = "chain_getBlockHash"
	// ChainGetBlockMethod returns the block (header and extrinsics) for a hash.
	ChainGetBlockMethod         Method = "chain_getBlock"
	// ChainGetFinalizedHeadMethod returns the hash of the last finalized block.
	ChainGetFinalizedHeadMethod Method = "chain_getFinalizedHead"
)

// ============================================================================
// System and state methods
// ============================================================================

const (
	SystemVersionMethod          Method = "system_version"
	SystemNameMethod             Method = "system_name"
	SystemChainMethod            Method = "system_chain"
	SystemHealthMethod           Method = "system_health"
	SystemPeersMethod            Method = "system_peers"
	SystemSyncStateMethod        Method = "system_syncState"
	StateGetRuntimeVersionMethod Method = "state_getRuntimeVersion"
)

// ============================================================================
// MMR methods
// ============================================================================

const (
	// MMRGenerateProofMethod generates a merkle mountain range proof for a list
	// of block numbers. Params: [[n1, n2, ...]].
	MMRGenerateProofMethod Method = "mmr_generateProof"
)

// NodeInfo is the node metadata gathered by Client.GetNodeInfo. Every field holds
// the raw result of its method.
type NodeInfo struct {
	Version        string          `json:"version"`
	Name           string          `json:"name"`
	Chain          string          `json:"chain"`
	Health         json.RawMessage `json:"health"`
	FinalizedHead  string          `json:"finalizedHead"`
	Peers          json.RawMessage `json:"peers"`
	SyncState      json.RawMessage `json:"syncState"`
	RuntimeVersion json.RawMessage `json:"runtimeVersion"`
}
