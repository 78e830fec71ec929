// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"specverb/internal/config"
	"specverb/internal/params"
)

// PrintParams writes one row per parameter: its ID, display name, range,
// default and the value currently held by store.
func PrintParams(w io.Writer, store *params.Store) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRANGE\tDEFAULT\tVALUE")
	for _, s := range params.Definitions() {
		v, err := store.Get(s.ID)
		if err != nil {
			return err
		}
		rng := fmt.Sprintf("%s..%s", s.Format(s.Min), s.Format(s.Max))
		if s.Toggle {
			rng = "off|on"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, rng, s.Format(s.Default), s.Format(v))
	}
	return tw.Flush()
}

// PrintAudioConfig writes cfg as the audio section of a config file.
func PrintAudioConfig(w io.Writer, cfg config.AudioConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(struct {
		Audio config.AudioConfig `yaml:"audio"`
	}{cfg}); err != nil {
		return fmt.Errorf("failed to encode audio config: %w", err)
	}
	return enc.Close()
}
