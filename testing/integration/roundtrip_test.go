package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zoobzio/skein"
	"github.com/zoobzio/skein/msgpack"
	skeintest "github.com/zoobzio/skein/testing"
)

func TestRoundTrip_Widget(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts []skein.Option
	}{
		{"default", nil},
		{"compact", []skein.Option{skein.WithCompact()}},
		{"compressed", []skein.Option{skein.WithCompression(nil)}},
		{"embedded types", []skein.Option{skein.WithEmbedTypes()}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			original := &skeintest.Widget{Id: 1, IsEnabled: true, Description: "Test"}
			restored := skeintest.RoundTrip(t, original, tc.opts...)
			if *restored != *original {
				t.Errorf("got %+v, want %+v", restored, original)
			}
		})
	}
}

func TestRoundTrip_WidgetCompactSize(t *testing.T) {
	data := skeintest.MustSerialize(t, &skeintest.Widget{Id: 1, IsEnabled: true, Description: "Test"}, skein.WithCompact())
	if len(data) != 31 {
		t.Errorf("compact Widget is %d bytes, want 31", len(data))
	}
}

func TestRoundTrip_UnexportedFields(t *testing.T) {
	original := skeintest.NewPerson("Ada", 36, "ada@example.com")
	restored := skeintest.RoundTrip(t, original)
	if restored.Name != "Ada" || restored.Age() != 36 || restored.Email() != "ada@example.com" {
		t.Errorf("got %+v", restored)
	}
}

func TestRoundTrip_MutualFriends(t *testing.T) {
	a := skeintest.NewPerson("A", 1, "a@example.com")
	b := skeintest.NewPerson("B", 2, "b@example.com")
	a.Friends = []*skeintest.Person{b}
	b.Friends = []*skeintest.Person{a}

	restored := skeintest.RoundTrip(t, a)
	if len(restored.Friends) != 1 {
		t.Fatalf("restored %d friends", len(restored.Friends))
	}
	if restored.Friends[0].Friends[0] != restored {
		t.Error("cycle through Friends was not preserved")
	}
}

func TestRoundTrip_Ring(t *testing.T) {
	head := skeintest.RoundTrip(t, skeintest.NewRing(5))
	cur := head
	for i := 0; i < 5; i++ {
		if cur.Value != i {
			t.Errorf("node %d has value %d", i, cur.Value)
		}
		if cur.Next.Prev != cur {
			t.Errorf("node %d: Next.Prev does not point back", i)
		}
		cur = cur.Next
	}
	if cur != head {
		t.Error("ring did not close at the head")
	}
}

func TestRoundTrip_DeepChainTruncates(t *testing.T) {
	data := skeintest.MustSerialize(t, skeintest.NewChain(10), skein.WithMaxDepth(3))
	var head *skeintest.Node
	if err := skein.Deserialize(data, &head, skein.WithMaxDepth(3)); err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	n := 0
	for cur := head; cur != nil; cur = cur.Next {
		n++
	}
	if n >= 10 {
		t.Errorf("chain of %d nodes survived a depth limit of 3", n)
	}
}

func TestRoundTrip_Interfaces(t *testing.T) {
	zoo := skeintest.RoundTrip(t, skeintest.NewZoo())
	if len(zoo.Animals) != 2 {
		t.Fatalf("restored %d animals", len(zoo.Animals))
	}
	dog, ok := zoo.Animals[0].(*skeintest.Dog)
	if !ok || dog.Name != "Rex" || dog.Breed != "Collie" {
		t.Errorf("Animals[0] = %#v", zoo.Animals[0])
	}
	cat, ok := zoo.Animals[1].(*skeintest.Cat)
	if !ok || cat.Lives != 9 {
		t.Errorf("Animals[1] = %#v", zoo.Animals[1])
	}
	if zoo.Keeper != zoo.Animals[0] {
		t.Error("Keeper should share identity with Animals[0]")
	}
	if zoo.Extra != int32(42) {
		t.Errorf("Extra = %#v, want int32(42)", zoo.Extra)
	}
}

func TestRoundTrip_ReaderRegistry(t *testing.T) {
	// The writer's registry learns Dog on write; a separate reader registry
	// only knows what was registered on it.
	writeReg := skein.NewRegistry()
	data := skeintest.MustSerialize(t, skeintest.NewZoo(), skein.WithRegistry(writeReg))

	var out *skeintest.Zoo
	if err := skein.Deserialize(data, &out, skein.WithRegistry(skein.NewRegistry())); err == nil {
		t.Fatal("Deserialize() should fail when the reader cannot resolve Dog")
	}

	readReg := skein.NewRegistry()
	skeintest.RegisterFixtures(readReg)
	if err := skein.Deserialize(data, &out, skein.WithRegistry(readReg)); err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
}

func TestRoundTrip_Inventory(t *testing.T) {
	owner := skeintest.NewPerson("Grace", 45, "grace@example.com")
	original := &skeintest.Inventory{
		Items: map[string]int32{"bolts": 12, "nuts": 30},
		Tags:  []string{"hardware", "bulk"},
		Grid:  [2][3]int16{{1, 2, 3}, {4, 5, 6}},
		Owner: owner,
	}
	restored := skeintest.RoundTrip(t, original)
	if restored.Items["bolts"] != 12 || restored.Items["nuts"] != 30 {
		t.Errorf("Items = %v", restored.Items)
	}
	if len(restored.Tags) != 2 || restored.Tags[1] != "bulk" {
		t.Errorf("Tags = %v", restored.Tags)
	}
	if restored.Grid != original.Grid {
		t.Errorf("Grid = %v", restored.Grid)
	}
	if restored.Owner.Age() != 45 {
		t.Errorf("Owner.Age() = %d", restored.Owner.Age())
	}
}

type Ledger struct {
	ID      uuid.UUID
	Opened  time.Time
	Balance decimal.Decimal
	Term    time.Duration
	Origin  skein.Point
	Initial skein.Char
}

func TestRoundTrip_Scalars(t *testing.T) {
	original := &Ledger{
		ID:      uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Opened:  time.Date(2024, 3, 15, 10, 30, 0, 123456700, time.UTC),
		Balance: decimal.RequireFromString("-1234.5678"),
		Term:    90 * time.Minute,
		Origin:  skein.Point{X: -3, Y: 7},
		Initial: 'λ',
	}
	restored := skeintest.RoundTrip(t, original)
	if restored.ID != original.ID {
		t.Errorf("ID = %v", restored.ID)
	}
	if !restored.Opened.Equal(original.Opened) {
		t.Errorf("Opened = %v, want %v", restored.Opened, original.Opened)
	}
	if !restored.Balance.Equal(original.Balance) {
		t.Errorf("Balance = %v", restored.Balance)
	}
	if restored.Term != original.Term || restored.Origin != original.Origin || restored.Initial != original.Initial {
		t.Errorf("got %+v", restored)
	}
}

func TestRoundTrip_Collections(t *testing.T) {
	type Queues struct {
		Pending *skein.Queue[string]
		Undo    *skein.Stack[int32]
		Seen    *skein.Set[string]
		Log     *skein.List[string]
	}
	original := &Queues{
		Pending: skein.NewQueue("a", "b", "c"),
		Undo:    skein.NewStack[int32](1, 2, 3),
		Seen:    skein.NewSet("x", "y"),
		Log:     skein.NewList("first", "second"),
	}
	restored := skeintest.RoundTrip(t, original)

	if v, _ := restored.Pending.Peek(); v != "a" || restored.Pending.Len() != 3 {
		t.Errorf("Pending front = %q, len %d", v, restored.Pending.Len())
	}
	if v, _ := restored.Undo.Peek(); v != 3 {
		t.Errorf("Undo top = %d, want 3", v)
	}
	if !restored.Seen.Contains("x", "y") || restored.Seen.Len() != 2 {
		t.Error("Seen lost elements")
	}
	if restored.Log.At(1) != "second" {
		t.Errorf("Log = %v", restored.Log.Items())
	}
}

func TestRoundTrip_MessagePackPlugin(t *testing.T) {
	type Settings struct {
		Theme string
		Size  int
	}
	type Profile struct {
		User     string
		Settings Settings
	}

	r := skein.NewRegistry()
	if err := msgpack.Register[Settings](r); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	original := &Profile{User: "ada", Settings: Settings{Theme: "dark", Size: 14}}
	restored := skeintest.RoundTrip(t, original, skein.WithRegistry(r))
	if *restored != *original {
		t.Errorf("got %+v, want %+v", restored, original)
	}
}

func TestRoundTrip_Codec(t *testing.T) {
	codec, err := skein.NewCodec[skeintest.Zoo](skein.WithCompact())
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}
	ctx := context.Background()
	data, err := codec.Marshal(ctx, skeintest.NewZoo())
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !codec.Validate(ctx, data) {
		t.Fatal("Validate() rejected codec output")
	}
	zoo, err := codec.Unmarshal(ctx, data)
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if zoo.Name != "City Zoo" {
		t.Errorf("Name = %q", zoo.Name)
	}

	doc, err := codec.Inspect(data)
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if doc.Root == nil || doc.Root.Tag != "Object" {
		t.Errorf("Inspect() root = %+v", doc.Root)
	}
}
