package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pkt.systems/smallrhost/internal/panels"
	"pkt.systems/smallrhost/internal/rvec"
	"pkt.systems/smallrhost/schema"
)

type panelInfo struct {
	Kind       schema.PanelKind       `yaml:"kind"`
	Generates  bool                   `yaml:"generates"`
	Parameters []schema.ParameterSpec `yaml:"parameters,omitempty"`
	Source     string                 `yaml:"source,omitempty"`
}

func newPanelsCmd() *cobra.Command {
	var asYAML bool
	var withSource bool
	cmd := &cobra.Command{
		Use:   "panels",
		Short: "List panel kinds and their parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := panels.NewCatalog()
			if err != nil {
				return err
			}
			infos := describePanels(catalog, withSource)
			if asYAML {
				data, err := yaml.Marshal(infos)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return writePanelTable(cmd.OutOrStdout(), infos)
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print as YAML")
	cmd.Flags().BoolVar(&withSource, "source", false, "include default programs (YAML only)")
	return cmd
}

func describePanels(catalog *panels.Catalog, withSource bool) []panelInfo {
	infos := make([]panelInfo, 0, len(catalog.Kinds()))
	for _, kind := range catalog.Kinds() {
		spec, _ := catalog.Lookup(kind)
		info := panelInfo{Kind: kind, Generates: spec.Generates(), Parameters: spec.Parameters()}
		if withSource {
			info.Source = spec.DefaultSource()
		}
		infos = append(infos, info)
	}
	return infos
}

func writePanelTable(out io.Writer, infos []panelInfo) error {
	for _, info := range infos {
		params := make([]string, 0, len(info.Parameters))
		for _, p := range info.Parameters {
			params = append(params, fmt.Sprintf("%s=%s", p.Name, rvec.FormatNumber(p.Default)))
		}
		line := fmt.Sprintf("%-11s %s", info.Kind, strings.Join(params, " "))
		if _, err := fmt.Fprintln(out, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}
