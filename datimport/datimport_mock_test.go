package datimport

import (
	"context"
	"testing"

	"go.uber.org/mock/gomock"

	mockprogress "github.com/romshelf/romshelf/internal/mock/progress"
	"github.com/romshelf/romshelf/progress"
)

// TestImportEmitsLifecycleEvents asserts the Started/DatDetected/
// SetStarted/Completed events fire in order on a fresh import of a
// one-set manifest, using a gomock double instead of inspecting a
// JSONSink's serialized output.
func TestImportEmitsLifecycleEvents(t *testing.T) {
	dir := t.TempDir()
	path := writeDAT(t, dir, "test.dat", s1DAT)
	store := openTestStore(t)
	ctx := context.Background()

	ctrl := gomock.NewController(t)
	sink := mockprogress.NewMockSink(ctrl)

	gomock.InOrder(
		sink.EXPECT().Emit(gomock.AssignableToTypeOf(progress.DatImportStarted{})).Times(1),
		sink.EXPECT().Emit(gomock.AssignableToTypeOf(progress.DatDetected{})).Times(1),
		sink.EXPECT().Emit(gomock.AssignableToTypeOf(progress.SetStarted{})).Times(1),
		sink.EXPECT().Emit(gomock.AssignableToTypeOf(progress.DatImportCompleted{})).Times(1),
	)

	if _, err := Import(ctx, store, path, Options{}, sink); err != nil {
		t.Fatalf("Import: %v", err)
	}
}
