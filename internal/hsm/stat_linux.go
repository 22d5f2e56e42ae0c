package hsm

import (
	"os"
	"syscall"
	"time"
)

func ownerAndAtime(info os.FileInfo) (uid, gid int, atime time.Time) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return -1, -1, info.ModTime()
	}
	return int(st.Uid), int(st.Gid), time.Unix(int64(st.Atim.Sec), int64(st.Atim.Nsec))
}
