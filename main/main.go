package main

import (
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/rawbytedev/staticptr"
)

type engine interface{ Work() }

type steam struct{ counter *uint64 }

func (e *steam) Work() { *e.counter++ }

type jet struct{ counter *uint64 }

func (e *jet) Work() { *e.counter += 5 }

func main() {
	go func() {
		log.Println(http.ListenAndServe("localhost:6060", nil))
	}()
	f, err := os.Create("mem.prof")
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	runtime.MemProfileRate = 1

	var counter uint64
	s := steam{counter: &counter}
	j := jet{counter: &counter}

	var box staticptr.Ptr[engine]
	for i := 0; i < 10000; i++ {
		if i%2 == 0 {
			_, _ = box.Emplace(&s)
		} else {
			_, _ = box.Emplace(&j)
		}
		box.Get().Work()
	}
	box.Reset()

	pprof.WriteHeapProfile(f)
	log.Printf("counter=%d", counter)
	time.Sleep(5 * time.Minute)
}
