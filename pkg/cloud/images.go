package cloud

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"gitlab.com/davidxarnold/nodecreds/pkg/core"
)

// ImageRule maps image names matching Match (a glob, compared
// case-insensitively, where * also spans "/") to default login credentials.
type ImageRule struct {
	Match   string `mapstructure:"match" json:"match"`
	Account string `mapstructure:"account" json:"account"`
	Secret  string `mapstructure:"secret" json:"secret,omitempty"`
}

type compiledRule struct {
	ImageRule
	g glob.Glob
}

// ImageCatalog resolves the default credentials of an image. Rules are tried
// in order; the first match wins.
type ImageCatalog struct {
	rules []compiledRule
}

var builtinImageRules = []ImageRule{
	{Match: "*ubuntu*", Account: "ubuntu"},
	{Match: "*debian*", Account: "admin"},
	{Match: "amzn*", Account: "ec2-user"},
	{Match: "al2023*", Account: "ec2-user"},
	{Match: "*amazon linux*", Account: "ec2-user"},
	{Match: "*bottlerocket*", Account: "ec2-user"},
	{Match: "rhel*", Account: "ec2-user"},
	{Match: "*centos*", Account: "centos"},
	{Match: "*rocky*", Account: "rocky"},
	{Match: "*fedora*", Account: "fedora"},
	{Match: "*suse*", Account: "ec2-user"},
	{Match: "cos-*", Account: "chronos"},
	{Match: "*container-optimized os*", Account: "chronos"},
}

// NewImageCatalog returns a catalog consulting rules before the built-in ones.
func NewImageCatalog(rules ...ImageRule) (*ImageCatalog, error) {
	c := &ImageCatalog{rules: make([]compiledRule, 0, len(rules)+len(builtinImageRules))}
	for _, r := range append(append([]ImageRule{}, rules...), builtinImageRules...) {
		g, err := glob.Compile(strings.ToLower(r.Match))
		if err != nil {
			return nil, fmt.Errorf("%w: image rule %q: %v", core.ErrInvalidArgument, r.Match, err)
		}
		c.rules = append(c.rules, compiledRule{ImageRule: r, g: g})
	}
	return c, nil
}

// DefaultImageCatalog returns a catalog with only the built-in rules.
func DefaultImageCatalog() *ImageCatalog {
	c, err := NewImageCatalog()
	if err != nil {
		// built-in patterns are constant
		panic(err)
	}
	return c
}

// DefaultCredentials returns the default credentials for an image name, or
// nil when no rule matches. A matching rule with neither account nor secret
// suppresses defaults for that image.
func (c *ImageCatalog) DefaultCredentials(name string) *core.Credentials {
	if c == nil || name == "" {
		return nil
	}
	lower := strings.ToLower(name)
	for _, r := range c.rules {
		if !r.g.Match(lower) {
			continue
		}
		if r.Account == "" && r.Secret == "" {
			return nil
		}
		return &core.Credentials{Account: r.Account, Secret: r.Secret}
	}
	return nil
}

// Image builds a core.Image for id/name with catalog defaults applied.
func (c *ImageCatalog) Image(id, name string) *core.Image {
	if id == "" && name == "" {
		return nil
	}
	lookup := name
	if lookup == "" {
		lookup = id
	}
	return &core.Image{ID: id, Name: name, DefaultCredentials: c.DefaultCredentials(lookup)}
}
