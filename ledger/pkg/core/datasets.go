package core

import "fmt"

// AddDataset attaches research data to an experiment and returns the
// dataset id, sequential per experiment starting at 1. Only the
// experiment's researcher may attach data. The metadata hash is stored
// opaquely.
func (l *Ledger) AddDataset(caller string, experimentID uint64, name, metadataHash string) (uint64, error) {
	if name == "" {
		return 0, fmt.Errorf("dataset name is required: %w", ErrInvalidArgument)
	}
	if metadataHash == "" {
		return 0, fmt.Errorf("metadata hash is required: %w", ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.experiments[experimentID]
	if !ok {
		return 0, fmt.Errorf("experiment %d: %w", experimentID, ErrNotFound)
	}
	if caller != exp.Owner {
		return 0, fmt.Errorf("caller %s does not own experiment %d: %w", caller, experimentID, ErrUnauthorized)
	}

	id := uint64(len(l.datasets[experimentID])) + 1
	l.datasets[experimentID] = append(l.datasets[experimentID], &Dataset{
		ID:           id,
		ExperimentID: experimentID,
		Name:         name,
		MetadataHash: metadataHash,
		Creator:      caller,
		CreatedAt:    l.clock.Now().UTC(),
	})

	l.log.Debug("core: dataset added", "experiment", experimentID, "dataset", id, "name", name)
	return id, nil
}

// GetDataset returns a copy of the dataset.
func (l *Ledger) GetDataset(experimentID, datasetID uint64) (Dataset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ds, err := l.datasetLocked(experimentID, datasetID)
	if err != nil {
		return Dataset{}, err
	}
	out := *ds
	out.Citations = make([]Citation, len(ds.Citations))
	copy(out.Citations, ds.Citations)
	return out, nil
}

// ListDatasets returns all datasets of an experiment in creation order.
func (l *Ledger) ListDatasets(experimentID uint64) ([]Dataset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.experiments[experimentID]; !ok {
		return nil, fmt.Errorf("experiment %d: %w", experimentID, ErrNotFound)
	}
	out := make([]Dataset, 0, len(l.datasets[experimentID]))
	for _, ds := range l.datasets[experimentID] {
		d := *ds
		d.Citations = make([]Citation, len(ds.Citations))
		copy(d.Citations, ds.Citations)
		out = append(out, d)
	}
	return out, nil
}

// MintDatasetNFT marks a dataset as minted. Only the dataset's creator may
// mint, and minting twice fails with ErrAlreadyProcessed.
func (l *Ledger) MintDatasetNFT(caller string, experimentID, datasetID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ds, err := l.datasetLocked(experimentID, datasetID)
	if err != nil {
		return err
	}
	if caller != ds.Creator {
		return fmt.Errorf("caller %s did not create dataset %d: %w", caller, datasetID, ErrUnauthorized)
	}
	if ds.IsNFT {
		return fmt.Errorf("dataset %d already minted: %w", datasetID, ErrAlreadyProcessed)
	}

	ds.IsNFT = true
	l.log.Info("core: dataset minted as NFT", "experiment", experimentID, "dataset", datasetID)
	return nil
}

// CiteDataset records a citation of a dataset and returns the citation id.
// Open to any caller.
func (l *Ledger) CiteDataset(caller string, experimentID, datasetID uint64, context string) (uint64, error) {
	if caller == "" {
		return 0, fmt.Errorf("caller address is required: %w", ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ds, err := l.datasetLocked(experimentID, datasetID)
	if err != nil {
		return 0, err
	}

	id := uint64(len(ds.Citations)) + 1
	ds.Citations = append(ds.Citations, Citation{
		ID:      id,
		Citer:   caller,
		Context: context,
		CitedAt: l.clock.Now().UTC(),
	})

	l.log.Debug("core: dataset cited", "experiment", experimentID, "dataset", datasetID, "citation", id)
	l.notify(DatasetCited{ExperimentID: experimentID, DatasetID: datasetID, CitationID: id, Citer: caller})
	return id, nil
}

// datasetLocked must be called with the lock held.
func (l *Ledger) datasetLocked(experimentID, datasetID uint64) (*Dataset, error) {
	if _, ok := l.experiments[experimentID]; !ok {
		return nil, fmt.Errorf("experiment %d: %w", experimentID, ErrNotFound)
	}
	sets := l.datasets[experimentID]
	if datasetID == 0 || datasetID > uint64(len(sets)) {
		return nil, fmt.Errorf("dataset %d of experiment %d: %w", datasetID, experimentID, ErrNotFound)
	}
	return sets[datasetID-1], nil
}
