package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/pvopt/app"
	"github.com/kilianp07/pvopt/core/dto"
	"github.com/kilianp07/pvopt/pkg/export"
)

var (
	taskPath     string
	outputFormat string
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve one task file and print the result",
	RunE:  solveFile,
}

func init() {
	solveCmd.Flags().StringVarP(&taskPath, "file", "f", "", "task file (.json, .yaml or .yml)")
	solveCmd.Flags().StringVarP(&outputFormat, "output", "o", "json", "output format: "+strings.Join(export.Formats, ", "))
	_ = solveCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(solveCmd)
}

func solveFile(cmd *cobra.Command, args []string) error {
	in, err := readTask(taskPath)
	if err != nil {
		return err
	}
	task, err := in.ToModel()
	if err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	cfg, err := loadOptional(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c, err := app.Build(cfg)
	if err != nil {
		return err
	}
	defer c.Bus.Close()

	res := c.Optimizer.Solve(cmd.Context(), task)
	return export.Write(cmd.OutOrStdout(), outputFormat, res)
}

func readTask(path string) (dto.Task, error) {
	var t dto.Task
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read task: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &t)
	case ".json":
		err = json.Unmarshal(data, &t)
	default:
		return t, fmt.Errorf("unsupported task format: %s", filepath.Ext(path))
	}
	if err != nil {
		return t, fmt.Errorf("decode task %s: %w", path, err)
	}
	return t, nil
}
