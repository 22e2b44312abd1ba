// Package kvsscenarios runs the end-to-end KVS scenarios as Ginkgo specs,
// the same suite shape tests/e2e/nvmeof uses for driver-level scenarios.
package kvsscenarios

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestKvsScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "KVS Scenarios Suite")
}
