// Package queueconfig decodes the scheduler's declarative policy file
// (quiet periods, resource groups, node weighting) from HCL, the way
// burstgridgo decodes its execution graph.
package queueconfig

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Policy is the decoded scheduler.hcl document.
type Policy struct {
	DefaultQuietPeriod time.Duration
	Resources          map[string][]string
	NodeWeights        map[string]int
}

// hclDocument is the raw decode target; gohcl needs concrete struct
// tags, so the friendlier Policy shape above is assembled from it in
// Load.
type hclDocument struct {
	DefaultQuietPeriodSeconds int             `hcl:"default_quiet_period_seconds,optional"`
	ResourceGroups            []hclResource   `hcl:"resource_group,block"`
	NodeWeights               []hclNodeWeight `hcl:"node_weight,block"`
}

type hclResource struct {
	Name  string   `hcl:"name,label"`
	Holds []string `hcl:"holds"`
}

type hclNodeWeight struct {
	Name   string `hcl:"name,label"`
	Weight int    `hcl:"weight"`
}

// Load parses and decodes path into a Policy. A missing
// default_quiet_period_seconds defaults to zero (immediate scheduling).
func Load(path string) (*Policy, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("queueconfig: parse %s: %w", path, diags)
	}

	var doc hclDocument
	if diags := gohcl.DecodeBody(f.Body, nil, &doc); diags.HasErrors() {
		return nil, fmt.Errorf("queueconfig: decode %s: %w", path, diags)
	}

	return fromDocument(doc), nil
}

// LoadBody decodes an already-parsed HCL body, used by callers that
// embed scheduler policy inside a larger HCL configuration file.
func LoadBody(body hcl.Body) (*Policy, error) {
	var doc hclDocument
	if diags := gohcl.DecodeBody(body, nil, &doc); diags.HasErrors() {
		return nil, fmt.Errorf("queueconfig: decode body: %w", diags)
	}
	return fromDocument(doc), nil
}

func fromDocument(doc hclDocument) *Policy {
	p := &Policy{
		DefaultQuietPeriod: time.Duration(doc.DefaultQuietPeriodSeconds) * time.Second,
		Resources:          make(map[string][]string, len(doc.ResourceGroups)),
		NodeWeights:        make(map[string]int, len(doc.NodeWeights)),
	}
	for _, rg := range doc.ResourceGroups {
		p.Resources[rg.Name] = rg.Holds
	}
	for _, nw := range doc.NodeWeights {
		p.NodeWeights[nw.Name] = nw.Weight
	}
	return p
}
