package process

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"go.uber.org/zap"

	"plazza/pkg/logger"
)

// K8sPodSpawner runs each kitchen as its own Kubernetes pod instead of
// a local subprocess, an alternate backend for deployments where
// reception itself runs in-cluster. Selected via
// config.SpawnMode == config.SpawnModeK8s.
type K8sPodSpawner struct {
	clientset kubernetes.Interface
	namespace string
	image     string
}

// NewK8sPodSpawner builds the clientset from in-cluster config or a
// kubeconfig file.
func NewK8sPodSpawner(namespace, image string, inCluster bool, kubeConfigPath string) (*K8sPodSpawner, error) {
	var cfg *rest.Config
	var err error

	if inCluster {
		cfg, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("process: in-cluster config: %w", err)
		}
	} else {
		if kubeConfigPath == "" {
			kubeConfigPath = clientcmd.RecommendedHomeFile
		}
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeConfigPath)
		if err != nil {
			return nil, fmt.Errorf("process: kubeconfig: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("process: build clientset: %w", err)
	}

	return &K8sPodSpawner{clientset: clientset, namespace: namespace, image: image}, nil
}

type k8sHandle struct {
	id        uint32
	podName   string
	namespace string
	clientset kubernetes.Interface
	running   atomic.Bool
}

func (h *k8sHandle) ID() uint32      { return h.id }
func (h *k8sHandle) IsRunning() bool { return h.running.Load() }

func (h *k8sHandle) Terminate(ctx context.Context) error {
	grace := int64(10)
	err := h.clientset.CoreV1().Pods(h.namespace).Delete(ctx, h.podName, metav1.DeleteOptions{
		GracePeriodSeconds: &grace,
	})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("process: delete pod %s: %w", h.podName, err)
	}
	h.running.Store(false)
	return nil
}

// Spawn creates a pod running the kitchen image with KITCHEN_ID set and
// returns its handle right away, marked running; a background
// watchForExit goroutine then tracks the pod. It does not wait for the
// pod to reach Running.
func (s *K8sPodSpawner) Spawn(ctx context.Context, kitchenID uint32) (Handle, error) {
	podName := fmt.Sprintf("plazza-kitchen-%d", kitchenID)

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      podName,
			Namespace: s.namespace,
			Labels: map[string]string{
				"app":        "plazza-kitchen",
				"kitchen-id": strconv.FormatUint(uint64(kitchenID), 10),
			},
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:  "kitchen",
					Image: s.image,
					Env: []corev1.EnvVar{
						{Name: "KITCHEN_ID", Value: strconv.FormatUint(uint64(kitchenID), 10)},
					},
				},
			},
		},
	}

	if _, err := s.clientset.CoreV1().Pods(s.namespace).Create(ctx, pod, metav1.CreateOptions{}); err != nil {
		return nil, fmt.Errorf("process: create pod %s: %w", podName, err)
	}

	h := &k8sHandle{id: kitchenID, podName: podName, namespace: s.namespace, clientset: s.clientset}
	h.running.Store(true)

	go s.watchForExit(h)

	return h, nil
}

// watchForExit polls the pod's phase and flips running to false once
// the pod is gone or has reached Succeeded or Failed.
func (s *K8sPodSpawner) watchForExit(h *k8sHandle) {
	const pollInterval = 2 * time.Second
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for range ticker.C {
		if !h.running.Load() {
			return
		}
		pod, err := s.clientset.CoreV1().Pods(h.namespace).Get(context.Background(), h.podName, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			h.running.Store(false)
			return
		}
		if err != nil {
			logger.Warn("k8s pod status poll failed", zap.String("pod", h.podName), zap.Error(err))
			continue
		}
		if pod.Status.Phase == corev1.PodSucceeded || pod.Status.Phase == corev1.PodFailed {
			h.running.Store(false)
			return
		}
	}
}
