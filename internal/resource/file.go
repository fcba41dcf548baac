package resource

import "context"

// ReadText reads the file's content from its backing entry.
func (f *File) ReadText(ctx context.Context) (string, error) {
	return f.ws.provider.ReadText(ctx, f.entry)
}

// WriteText replaces the file's content and publishes a Changed event on
// success.
func (f *File) WriteText(ctx context.Context, text string) error {
	if err := f.ws.provider.WriteText(ctx, f.entry, text); err != nil {
		return err
	}
	f.ws.publish(Changed, f)
	return nil
}
