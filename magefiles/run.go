//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Exports the training dataset of the clips found under the assets folder.
func (Run) Export() error {
	fmt.Println("Exporting dataset...")
	_, err := executeCmd("go", withArgs("run", ".", "export"), withStream())
	return err
}

// Plays the clips through the network.
func (Run) Play() error {
	fmt.Println("Run player...")
	_, err := executeCmd("go", withArgs("run", ".", "play", "-debug"), withStream())
	return err
}
