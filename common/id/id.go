// Package id issues identifiers for rows the service creates.
//
// Posts and log entries use Snowflake ids (time ordered, unique across
// server and worker nodes). Workflow runs use prefixed UUIDs because their
// ids are handed to clients and must not leak creation order per node.
package id

import (
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

const runPrefix = "wfr_"

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New returns a Snowflake id rendered as a decimal string.
func New() string {
	if node == nil {
		_ = Init(0)
	}
	return strconv.FormatInt(node.Generate().Int64(), 10)
}

// NewRunID returns a workflow run id such as "wfr_0b6f...".
func NewRunID() string {
	return runPrefix + uuid.NewString()
}
