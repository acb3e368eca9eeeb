// genstream writes a synthetic score stream in the bridge's input protocol.
// Useful for exercising a decode session by hand:
//
//	genstream -utterances 2 | scorebridge decode --classes 8 --chunk-frames 4
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"
)

func main() {
	utterances := flag.Int("utterances", 1, "utterances to emit")
	chunks := flag.Int("chunks", 3, "activity chunks per utterance")
	frames := flag.Int("frames", 4, "frames per chunk")
	classes := flag.Int("classes", 8, "scoring classes per frame")
	seed := flag.Int64("seed", 1, "random seed")
	pace := flag.Duration("pace", 0, "delay between chunks, e.g. 10ms")
	flag.Parse()

	if *utterances < 0 || *chunks < 1 || *frames < 1 || *classes < 1 {
		log.Fatal("genstream: utterances must be >= 0 and chunks, frames, classes >= 1")
	}

	rng := rand.New(rand.NewSource(*seed))
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	for u := 0; u < *utterances; u++ {
		for c := 0; c < *chunks; c++ {
			fmt.Fprintf(w, "-1 %d", *frames)
			for i := 0; i < *frames**classes; i++ {
				fmt.Fprintf(w, " %.4f", -10*rng.Float64())
			}
			fmt.Fprintln(w)
			if *pace > 0 {
				w.Flush()
				time.Sleep(*pace)
			}
		}
		fmt.Fprintln(w, "-2 0")
	}
	fmt.Fprintln(w, "-3")
	fmt.Fprintln(w, "over")
}
