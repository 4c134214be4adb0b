// Command deltasim runs the built-in test benches and reads recordings.
package main

import "github.com/sarchlab/deltasim/deltasim/cmd"

func main() {
	cmd.Execute()
}
