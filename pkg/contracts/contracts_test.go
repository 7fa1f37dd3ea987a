package contracts_test

import (
	"testing"

	"github.com/llamaedge/nexus-gateway/internal/vectordb"
	"github.com/llamaedge/nexus-gateway/pkg/contracts"
)

// A custom vector DB backend only has contracts.Driver to implement against;
// this asserts the in-memory test driver actually satisfies it.
var _ contracts.Driver = (*vectordb.MemoryDriver)(nil)

func TestCapabilitiesAliasMatchesRegistryShape(t *testing.T) {
	caps := &contracts.Capabilities{
		ChatModel: &contracts.ModelDescriptor{Name: "m", HasSystemPrompt: true},
	}
	if caps.ChatModel.Name != "m" {
		t.Errorf("ChatModel.Name = %q, want m", caps.ChatModel.Name)
	}
}
