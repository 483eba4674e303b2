package main

import (
	"os"

	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
