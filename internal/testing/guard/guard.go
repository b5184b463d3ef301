package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PARKYARD_TEST_MODE") == "" {
			_ = os.Setenv("PARKYARD_TEST_MODE", "1")
		}
	})
}
