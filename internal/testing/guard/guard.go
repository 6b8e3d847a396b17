package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("DOMUS_TEST_MODE") == "" {
			_ = os.Setenv("DOMUS_TEST_MODE", "1")
		}
	})
}
