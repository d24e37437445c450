package cmd

import (
	"encoding/json"
	"os"

	"github.com/urfave/cli/v2"
)

// FlagRepo is the directory holding the dealbot config and database
var FlagRepo = &cli.StringFlag{
	Name:    "repo",
	Usage:   "dealbot repo directory",
	Value:   "~/.dealbot",
	EnvVars: []string{"DEALBOT_PATH"},
}

var FlagJson = &cli.BoolFlag{
	Name:  "json",
	Usage: "print output as json",
}

// PrintJson writes v to stdout as indented json
func PrintJson(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
