package coverage

import "testing"

func TestBucketBoundaries(t *testing.T) {
	cases := map[byte]byte{
		0: 0, 1: 1, 2: 2, 3: 4,
		4: 8, 7: 8,
		8: 16, 15: 16,
		16: 32, 31: 32,
		32: 64, 127: 64,
		128: 128, 255: 128,
	}
	for in, want := range cases {
		if got := bucket(in); got != want {
			t.Errorf("bucket(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestEdgeDiscoveryS1(t *testing.T) {
	g := NewGlobalBranches()
	br := NewBranches(g)

	var trace BranchBuf
	trace[4] = 1
	trace[5] = 1
	trace[8] = 3

	updates, _ := br.Observe(&trace)
	novelty := br.HasNewUniquePath(Normal, updates, 0x1111)
	if novelty != NoveltyEdge {
		t.Fatalf("expected NoveltyEdge, got %v", novelty)
	}
	if g.Density() != 3 {
		t.Fatalf("expected density 3, got %d", g.Density())
	}
	if g.virginNormal.data[4] != 0xFE {
		t.Fatalf("virgin_normal[4] = %#x, want 0xFE", g.virginNormal.data[4])
	}
	if g.virginNormal.data[5] != 0xFE {
		t.Fatalf("virgin_normal[5] = %#x, want 0xFE", g.virginNormal.data[5])
	}
	if g.virginNormal.data[8] != 0xFB {
		t.Fatalf("virgin_normal[8] = %#x, want 0xFB", g.virginNormal.data[8])
	}

	// Replay: same trace must now be non-novel.
	updates2, _ := br.Observe(&trace)
	novelty2 := br.HasNewUniquePath(Normal, updates2, 0x1111)
	if novelty2 != NoveltyNone {
		t.Fatalf("expected NoveltyNone on replay, got %v", novelty2)
	}
}

func TestPathOnlyNoveltyS2(t *testing.T) {
	g := NewGlobalBranches()
	br := NewBranches(g)

	var trace BranchBuf
	trace[4] = 1
	trace[5] = 1
	trace[8] = 3

	updates, _ := br.Observe(&trace)
	br.HasNewUniquePath(Normal, updates, 0xAAAA)

	updates2, _ := br.Observe(&trace)
	before := g.Density()
	novelty := br.HasNewUniquePath(Normal, updates2, 0xBBBB)
	if novelty != NoveltyPath {
		t.Fatalf("expected NoveltyPath, got %v", novelty)
	}
	if g.Density() != before {
		t.Fatalf("density changed on path-only novelty: %d -> %d", before, g.Density())
	}
}

func TestObserveIncreasesTotalHitExactly(t *testing.T) {
	g := NewGlobalBranches()
	br := NewBranches(g)

	var trace BranchBuf
	trace[100] = 5
	trace[4096] = 200

	br.Observe(&trace)

	if g.totalHit.data[100] != 5 {
		t.Fatalf("total_hit[100] = %d, want 5", g.totalHit.data[100])
	}
	if g.totalHit.data[4096] != 200 {
		t.Fatalf("total_hit[4096] = %d, want 200", g.totalHit.data[4096])
	}
}

func TestVirginNeverGainsBits(t *testing.T) {
	g := NewGlobalBranches()
	br := NewBranches(g)

	var trace BranchBuf
	trace[1] = 1

	for i := 0; i < 5; i++ {
		updates, _ := br.Observe(&trace)
		before := g.virginNormal.data[1]
		br.HasNew(Normal, updates)
		after := g.virginNormal.data[1]
		if after&^before != 0 {
			t.Fatalf("virgin byte gained bits: %#x -> %#x", before, after)
		}
	}
}
