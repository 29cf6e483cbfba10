package utilities

import (
	"github.com/bwmarrin/snowflake"
	"github.com/caarlos0/env/v11"
	"github.com/segmentio/ksuid"
)

type IDConfig struct {
	Node int64 `env:"SNOWFLAKE_NODE" envDefault:"1"`
}

// IDConfigFromEnv reads the snowflake node from SNOWFLAKE_NODE, defaulting to
// node 1 when unset or malformed.
func IDConfigFromEnv() IDConfig {
	var cfg IDConfig
	if err := env.Parse(&cfg); err != nil {
		return IDConfig{Node: 1}
	}
	return cfg
}

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// IDGenerator hands out snowflake ids from a single node so ids generated in
// the same millisecond stay unique.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator creates a generator for the given node id. If the node
// cannot be initialized the generator falls back to KSUID strings.
func NewIDGenerator(nodeID int64) *IDGenerator {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return &IDGenerator{}
	}
	return &IDGenerator{node: node}
}

// Next returns a new snowflake id string.
func (g *IDGenerator) Next() string {
	if g == nil || g.node == nil {
		return NewKSUID()
	}
	return g.node.Generate().String()
}
