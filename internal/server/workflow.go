package server

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// workflowRunEvent is the subset of the workflow_run webhook payload the
// service consumes.
type workflowRunEvent struct {
	Action      string `json:"action"`
	WorkflowRun struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		HeadSHA string `json:"head_sha"`
		HTMLURL string `json:"html_url"`
	} `json:"workflow_run"`
	Repository struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
}

// processWorkflowRun handles one completed workflow run: find its evidence
// artifacts, extract the manifests, and create or update a check run per
// KSI. Errors are logged, never propagated; webhook delivery already got
// its 202.
func (s *Server) processWorkflowRun(ctx context.Context, event *workflowRunEvent) {
	if event.Action != "completed" {
		s.log.WithField("action", event.Action).Debug("ignoring workflow_run action")
		return
	}

	installationID := event.Installation.ID
	owner := event.Repository.Owner.Login
	repo := event.Repository.Name
	runID := event.WorkflowRun.ID
	headSHA := event.WorkflowRun.HeadSHA
	runURL := event.WorkflowRun.HTMLURL

	if installationID == 0 || owner == "" || repo == "" || runID == 0 || headSHA == "" {
		s.log.Error("missing required fields in workflow_run payload")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	log := s.log.WithFields(logrus.Fields{
		"owner":  owner,
		"repo":   repo,
		"run_id": runID,
	})
	log.Info("processing workflow run")

	results, err := s.github.EvaluationResults(ctx, installationID, owner, repo, runID)
	if err != nil {
		log.WithError(err).Error("failed to collect evaluation results")
		return
	}
	if len(results) == 0 {
		log.Info("no KSI evidence artifacts found, skipping")
		return
	}

	for _, result := range results {
		klog := log.WithFields(logrus.Fields{
			"ksi":    result.KSIID,
			"status": result.Manifest.Status(),
		})

		existing, err := s.github.FindCheckRun(ctx, installationID, owner, repo, headSHA, result.KSIID)
		if err != nil {
			klog.WithError(err).Error("failed to look up existing check run")
			continue
		}

		if existing != nil {
			klog.WithField("check_run_id", existing.ID).Info("updating check run")
			_, err = s.github.UpdateCheckRun(ctx, installationID, owner, repo, existing.ID,
				result.Manifest, result.ArtifactName, runURL, result.KSIID)
		} else {
			klog.Info("creating check run")
			_, err = s.github.CreateCheckRun(ctx, installationID, owner, repo, headSHA,
				result.Manifest, result.ArtifactName, runURL, result.KSIID)
		}
		if err != nil {
			klog.WithError(err).Error("failed to publish check run")
		}
	}

	log.WithField("ksis", len(results)).Info("workflow run processed")
}
