package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/matgraph/pkg/blueprint"
	"github.com/chazu/matgraph/pkg/engine"
	"github.com/chazu/matgraph/pkg/graph"
	"github.com/chazu/matgraph/pkg/scene"
)

func (c *cli) compileCmd() *cobra.Command {
	var out, entity string
	cmd := &cobra.Command{
		Use:   "compile <child.mat>",
		Short: "Generate the fragment shader for a child material",
		Long: `Generate the fragment shader for a child material.

The generated block replaces the placeholder in the shader template. Bound
textures are reported on stderr.

Examples:
  matc compile materials/oak.mat
  matc compile materials/oak.mat -o build/oak.frag`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			child, err := c.store.Child(args[0])
			if err != nil {
				return err
			}
			e := scene.NewEntity(entity)
			src, err := c.generator().Generate(e, child)
			if err != nil {
				return err
			}
			for _, ch := range graph.Channels()[:graph.LastTextureChannel+1] {
				if h, path := e.SurfaceMaterial.Texture(ch); path != "" {
					c.logger.Info("texture bound", "channel", ch.String(), "path", path, "format", h.Format)
				}
			}
			if out == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), src)
				return err
			}
			if err := os.WriteFile(out, []byte(src), 0o644); err != nil {
				return fmt.Errorf("write shader: %w", err)
			}
			c.logger.Info("shader written", "path", out, "bytes", len(src))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write the shader to a file instead of stdout")
	cmd.Flags().StringVar(&entity, "entity", "preview", "Name of the entity receiving texture bindings")
	return cmd
}

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <blueprint.bp>",
		Short: "Check a blueprint graph for structural problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bp, err := c.store.Blueprint(args[0])
			if err != nil {
				return err
			}
			findings := graph.Validate(bp.System)
			for _, f := range findings {
				fmt.Fprintln(cmd.OutOrStdout(), f.Error())
			}
			if graph.HasErrors(findings) {
				return fmt.Errorf("%s: blueprint is invalid", bp.Path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d nodes, %d links)\n",
				bp.Path, bp.System.NodeCount(), bp.System.LinkCount())
			return nil
		},
	}
}

func (c *cli) treeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree <blueprint.bp>",
		Short: "Print the node tree feeding the material root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bp, err := c.store.Blueprint(args[0])
			if err != nil {
				return err
			}
			tr, err := bp.Tree()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprint(w, tr.String())
			fmt.Fprintln(w)
			for _, n := range bp.System.Nodes() {
				fmt.Fprintf(w, "node %d: %s %q\n", n.ID, n.Kind, n.Name)
			}
			return nil
		},
	}
}

func (c *cli) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <child.mat>...",
		Short: "Reconcile child materials with their blueprint and save them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				child, err := c.store.Child(path)
				if err != nil {
					return err
				}
				bp, err := c.store.Blueprint(child.BlueprintPath)
				if err != nil {
					return err
				}
				removed, added := child.Sync(bp)
				if err := c.store.SaveChild(child.Path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: removed %d, added %d\n", child.Path, removed, added)
			}
			return nil
		},
	}
}

func (c *cli) scriptCmd() *cobra.Command {
	var out, child, name string
	cmd := &cobra.Command{
		Use:   "script <file.lisp>",
		Short: "Build a blueprint from a material script",
		Long: `Build a blueprint from a material script.

Example script:
  (def root (material))
  (def a (slider 0.5))
  (def inv (one-minus-x))
  (connect (slider 0.3) inv 0)
  (def m (multiply))
  (connect a m 0)
  (connect inv m 1)
  (connect m root :roughness)

Values given in the script seed the optional child material.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			res, evalErrs, err := engine.NewEngine().Evaluate(string(source))
			if err != nil {
				return err
			}
			if len(evalErrs) > 0 {
				for _, e := range evalErrs {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", args[0], e.Error())
				}
				return fmt.Errorf("%s: %d script errors", args[0], len(evalErrs))
			}
			if graph.HasErrors(graph.Validate(res.System)) {
				c.logger.Warn("scripted graph has validation errors", "script", args[0])
			}

			if name == "" {
				name = strings.TrimSuffix(out, ".bp")
			}
			bp := blueprint.FromSystem(name, out, res.System)
			if err := c.store.AddBlueprint(bp); err != nil {
				return err
			}
			if err := c.store.SaveBlueprint(bp.Path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d nodes, %d links)\n",
				bp.Path, bp.System.NodeCount(), bp.System.LinkCount())

			if child == "" {
				return nil
			}
			ch, err := c.store.CreateChild(strings.TrimSuffix(child, ".mat"), child, bp.Path)
			if err != nil {
				return err
			}
			for uuid, v := range res.Values {
				if err := ch.Set(bp, uuid, v); err != nil {
					return err
				}
			}
			if err := c.store.SaveChild(ch.Path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d values)\n", ch.Path, ch.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Blueprint path inside the project")
	cmd.Flags().StringVar(&child, "child", "", "Also write a child material seeded with the script's values")
	cmd.Flags().StringVar(&name, "name", "", "Blueprint name (defaults to the output path)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func (c *cli) newCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create blueprints and child materials",
	}

	var name string
	bpCmd := &cobra.Command{
		Use:   "blueprint <path.bp>",
		Short: "Create a blueprint holding only a material root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := name
			if n == "" {
				n = strings.TrimSuffix(args[0], ".bp")
			}
			bp, err := c.store.CreateBlueprint(n, args[0])
			if err != nil {
				return err
			}
			if err := c.store.SaveBlueprint(bp.Path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", bp.Path)
			return nil
		},
	}
	bpCmd.Flags().StringVar(&name, "name", "", "Blueprint name")

	var childName, parent string
	childCmd := &cobra.Command{
		Use:   "child <path.mat>",
		Short: "Create a child material of a blueprint with default values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := childName
			if n == "" {
				n = strings.TrimSuffix(args[0], ".mat")
			}
			ch, err := c.store.CreateChild(n, args[0], parent)
			if err != nil {
				return err
			}
			if err := c.store.SaveChild(ch.Path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (blueprint %s)\n", ch.Path, ch.BlueprintPath)
			return nil
		},
	}
	childCmd.Flags().StringVar(&childName, "name", "", "Child material name")
	childCmd.Flags().StringVar(&parent, "blueprint", "", "Blueprint the child inherits")
	_ = childCmd.MarkFlagRequired("blueprint")

	cmd.AddCommand(bpCmd, childCmd)
	return cmd
}
