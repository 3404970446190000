package capture

import "fmt"

// ringLayout sizes an AF_PACKET mmap ring for the requested memory budget.
//
// The kernel requires frameSize to be a multiple of TPACKET_ALIGNMENT,
// blockSize a multiple of both pageSize and frameSize.
func ringLayout(bufferMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	const tpacketAlignment = 16
	const tpacketHdrLen = 52
	const maxBlockSize = 4 << 20

	if bufferMB <= 0 {
		return 0, 0, 0, fmt.Errorf("buffer_size_mb must be positive, got %d", bufferMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snap_len must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return 0, 0, 0, fmt.Errorf("page size must be a positive multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)

	blockSize = lcm(pageSize, frameSize)
	if blockSize > maxBlockSize {
		// page-sized frames make any whole number of frames page aligned
		frameSize = alignUp(frameSize, pageSize)
		if frameSize > maxBlockSize {
			return 0, 0, 0, fmt.Errorf("snap_len %d does not fit a %d byte ring block", snapLen, maxBlockSize)
		}
		blockSize = (maxBlockSize / frameSize) * frameSize
	}

	numBlocks = (bufferMB << 20) / blockSize
	if numBlocks < 1 {
		numBlocks = 1
	}
	return frameSize, blockSize, numBlocks, nil
}

func alignUp(n, to int) int {
	return ((n + to - 1) / to) * to
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}
