package cli

import (
	"errors"

	"github.com/MakeNowJust/heredoc"
)

var (
	ErrConfigNotFound = errors.New(heredoc.Doc(`
	Config file not found. Loading from defaults...

	Run "marmot config init" to initialize a new configuration file
	Run "marmot help environment" for more information.

	Alternatively, make a "marmot.yaml" file in the current directory
`))

	errMemoryStore = errors.New("the memory store lives inside the plugin process, set store.driver to catalog or postgres")
)
