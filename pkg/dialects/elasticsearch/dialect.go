// Package elasticsearch provides the Elasticsearch dialect definition.
package elasticsearch

import (
	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/leapstack-labs/leapdb/pkg/dialect"
)

func init() {
	dialect.Register(Elasticsearch)
}

// Elasticsearch is the Elasticsearch dialect.
var Elasticsearch = dialect.NewDialect("elasticsearch").
	Family(core.FamilySearch).
	Build()
