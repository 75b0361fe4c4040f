package store

import "gorm.io/gorm"

// UpsertFolder creates or updates a RecordingFolder row, returning its id.
// Flags are only applied on first insert; use SetFolderFlags to mutate an
// existing folder's policy (spec.md §3: "never deleted by the core (only
// flags mutated)").
func (s *Store) UpsertFolder(path string, ignoreTranscribing, ignoreConverting bool) (uint, error) {
	return s.UpsertFolderRecursive(path, ignoreTranscribing, ignoreConverting, false)
}

// UpsertFolderRecursive is UpsertFolder with an explicit recursive-scan flag
// (spec.md §4.3 step 2: "non-recursive unless folder policy says otherwise").
func (s *Store) UpsertFolderRecursive(path string, ignoreTranscribing, ignoreConverting, recursive bool) (uint, error) {
	var id uint
	err := s.write(func(tx *gorm.DB) error {
		var folder RecordingFolder
		err := tx.Where(RecordingFolder{FolderPath: path}).
			Attrs(RecordingFolder{IgnoreTranscribing: ignoreTranscribing, IgnoreConverting: ignoreConverting, Recursive: recursive}).
			FirstOrCreate(&folder).Error
		if err != nil {
			return err
		}
		id = folder.ID
		return nil
	})
	return id, err
}

// SetFolderFlags mutates the ignore_transcribing / ignore_converting /
// recursive policy of an existing folder.
func (s *Store) SetFolderFlags(id uint, ignoreTranscribing, ignoreConverting, recursive bool) error {
	return s.write(func(tx *gorm.DB) error {
		return tx.Model(&RecordingFolder{}).Where("id = ?", id).Updates(map[string]any{
			"ignore_transcribing": ignoreTranscribing,
			"ignore_converting":   ignoreConverting,
			"recursive":           recursive,
		}).Error
	})
}

// ListFolders returns every configured RecordingFolder.
func (s *Store) ListFolders() ([]RecordingFolder, error) {
	var folders []RecordingFolder
	if err := s.DB.Order("id").Find(&folders).Error; err != nil {
		return nil, err
	}
	return folders, nil
}
